package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/models"
	"github.com/starford/notenest/internal/storage"
)

// Report summarizes one Reconcile pass.
type Report struct {
	RunID     string        `json:"run_id"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Pruned    int           `json:"pruned"`
	Failed    []Failure     `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Failure records a file that Reconcile skipped.
type Failure struct {
	Location string `json:"location"`
	Error    string `json:"error"`
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCreated
	outcomeUpdated
)

// Reconcile re-derives the index from the page files. New files are indexed
// through the create path, files whose checksum differs from the indexed one
// through the update path; unchanged files are left alone, so running it twice
// changes nothing. Per-file failures are logged and reported, never fatal.
// With pruning enabled, records whose file is gone are deleted.
func (r *Repository) Reconcile(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{RunID: uuid.NewString(), Failed: []Failure{}}
	log := r.logger.With(slog.String("run_id", rep.RunID))

	locations, err := r.store.Enumerate()
	if err != nil {
		return nil, apperr.IO("repository: enumerate", err)
	}

	seen := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		slug := storage.SlugFor(loc)
		seen[slug] = struct{}{}

		res, p, err := r.reconcileFile(loc, slug)
		if err != nil {
			log.Warn("repository: reconcile skipped file",
				slog.String("location", loc),
				slog.String("error", err.Error()))
			rep.Failed = append(rep.Failed, Failure{Location: loc, Error: err.Error()})
			continue
		}
		switch res {
		case outcomeCreated:
			rep.Created++
			r.hook("create", slug, r.registry.PageCreated(p.ID, p.CustomFields))
			r.emit(EventCreated, slug)
		case outcomeUpdated:
			rep.Updated++
			r.hook("update", slug, r.registry.PageUpdated(p.ID, p.CustomFields))
			r.emit(EventUpdated, slug)
		default:
			rep.Unchanged++
		}
	}

	if r.prune {
		if err := r.pruneOrphans(ctx, seen, rep, log); err != nil {
			return rep, err
		}
	}

	rep.Duration = time.Since(start)
	log.Info("repository: reconcile finished",
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("unchanged", rep.Unchanged),
		slog.Int("pruned", rep.Pruned),
		slog.Int("failed", len(rep.Failed)))
	return rep, nil
}

// reconcileFile brings the index record for one file in line with it and
// returns the page as written. Plugin hooks are left to the caller.
func (r *Repository) reconcileFile(loc, slug string) (outcome, *models.Page, error) {
	if err := storage.ValidateSlug(slug); err != nil {
		return 0, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.store.Load(loc)
	if err != nil {
		return 0, nil, err
	}
	p.Tags = normalizeTags(p.Tags)

	rec, err := r.index.GetBySlug(slug)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if p.CustomFields, err = r.prepareFields(p.MetadataType, p.CustomFields); err != nil {
			return 0, nil, err
		}
		if err := r.persist(p); err != nil {
			return 0, nil, err
		}
		return outcomeCreated, p, nil
	case err != nil:
		return 0, nil, apperr.IO("repository: lookup", err)
	}

	if rec.Checksum == p.Checksum && rec.Location == p.Location {
		return outcomeUnchanged, p, nil
	}

	p.ID = rec.ID
	p.CreatedAt = rec.CreatedAt
	if p.CustomFields, err = r.prepareFields(p.MetadataType, p.CustomFields); err != nil {
		return 0, nil, err
	}
	p.UpdatedAt = r.timestamp()
	if err := r.persist(p); err != nil {
		return 0, nil, err
	}
	return outcomeUpdated, p, nil
}

// pruneOrphans deletes index records for slugs that have no file.
func (r *Repository) pruneOrphans(ctx context.Context, seen map[string]struct{}, rep *Report, log *slog.Logger) error {
	r.mu.Lock()
	fps, err := r.index.Fingerprints()
	r.mu.Unlock()
	if err != nil {
		return apperr.IO("repository: fingerprints", err)
	}

	for slug, fp := range fps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		pruned, err := r.pruneOne(slug, fp.ID)
		if err != nil {
			log.Warn("repository: prune failed", slog.String("slug", slug), slog.String("error", err.Error()))
			rep.Failed = append(rep.Failed, Failure{Location: slug, Error: err.Error()})
			continue
		}
		if pruned {
			rep.Pruned++
			r.hook("delete", slug, r.registry.PageDeleted(fp.ID))
			r.emit(EventDeleted, slug)
		}
	}
	return nil
}

func (r *Repository) pruneOne(slug string, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, err := r.store.LocationFor(slug)
	if err == nil && r.store.Exists(loc) {
		// Created after the enumeration.
		return false, nil
	}
	deleted, err := r.index.DeletePage(id)
	if err != nil {
		return false, fmt.Errorf("repository: prune %q: %w", slug, err)
	}
	return deleted, nil
}
