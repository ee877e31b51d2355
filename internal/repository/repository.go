// Package repository keeps the page files and the derived index in step. All
// page mutations go through a Repository, which writes the file first and then
// applies the matching index update as one local transaction.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/index"
	"github.com/starford/notenest/internal/models"
	"github.com/starford/notenest/internal/plugin"
	"github.com/starford/notenest/internal/storage"
	"github.com/starford/notenest/internal/wikilink"
)

// CreateInput is the desired state of a new page.
type CreateInput struct {
	Slug         string
	Title        string
	Body         string
	Tags         []string
	MetadataType string
	CustomFields map[string]any
}

// UpdateInput lists the fields to change. Nil fields are left as they are;
// CustomFields is merged into the existing map. A non-empty IfMatch must equal
// the checksum of the current file or the update fails with
// apperr.ErrConflict.
type UpdateInput struct {
	Title        *string
	Body         *string
	Tags         *[]string
	CustomFields map[string]any
	IfMatch      string
}

// Repository coordinates the page store and the index.
type Repository struct {
	store    storage.Provider
	index    index.PageIndex
	registry *plugin.Registry
	logger   *slog.Logger
	now      func() time.Time
	onEvent  EventFunc
	prune    bool

	// mu serializes writers across the two stores; readers share it.
	mu sync.RWMutex
}

// New creates a Repository over store and idx.
func New(store storage.Provider, idx index.PageIndex, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		index:    idx,
		registry: plugin.NewRegistry(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the plugin registry in use.
func (r *Repository) Registry() *plugin.Registry {
	return r.registry
}

// Create writes a new page file and indexes it. It fails with
// apperr.ErrConflict when the slug is already live or its file exists.
func (r *Repository) Create(_ context.Context, in CreateInput) (*models.Page, error) {
	loc, err := r.store.LocationFor(in.Slug)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	p, err := r.createLocked(in, loc)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.hook("create", p.Slug, r.registry.PageCreated(p.ID, p.CustomFields))
	r.emit(EventCreated, p.Slug)
	return p, nil
}

func (r *Repository) createLocked(in CreateInput, loc string) (*models.Page, error) {
	if _, err := r.index.GetBySlug(in.Slug); err == nil {
		return nil, fmt.Errorf("repository: page %q: %w", in.Slug, apperr.ErrConflict)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.IO("repository: lookup", err)
	}
	if r.store.Exists(loc) {
		return nil, fmt.Errorf("repository: file %s exists: %w", loc, apperr.ErrConflict)
	}

	mt := in.MetadataType
	if mt == "" {
		mt = models.DefaultMetadataType
	}
	custom, err := r.prepareFields(mt, in.CustomFields)
	if err != nil {
		return nil, err
	}
	title := in.Title
	if title == "" {
		title = path.Base(in.Slug)
	}

	now := r.timestamp()
	p := &models.Page{
		Slug:         in.Slug,
		Title:        title,
		Body:         in.Body,
		Tags:         normalizeTags(in.Tags),
		MetadataType: mt,
		CustomFields: custom,
		CreatedAt:    now,
		UpdatedAt:    now,
		Location:     loc,
	}
	if err := r.persist(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the indexed page for slug with its body read from disk. A
// missing record or file yields apperr.ErrNotFound.
func (r *Repository) Get(_ context.Context, slug string) (*models.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.index.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	file, err := r.store.Load(rec.Location)
	if err != nil {
		return nil, apperr.IO("repository: load", err)
	}
	rec.Body = file.Body
	rec.Checksum = file.Checksum
	return rec, nil
}

// Update applies in to the page at slug. updated_at always advances.
func (r *Repository) Update(_ context.Context, slug string, in UpdateInput) (*models.Page, error) {
	r.mu.Lock()
	p, err := r.updateLocked(slug, in)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.hook("update", p.Slug, r.registry.PageUpdated(p.ID, p.CustomFields))
	r.emit(EventUpdated, p.Slug)
	return p, nil
}

func (r *Repository) updateLocked(slug string, in UpdateInput) (*models.Page, error) {
	rec, err := r.index.GetBySlug(slug)
	if err != nil {
		return nil, apperr.IO("repository: lookup", err)
	}
	p, err := r.store.Load(rec.Location)
	if err != nil {
		return nil, apperr.IO("repository: load", err)
	}
	if in.IfMatch != "" && in.IfMatch != p.Checksum {
		return nil, fmt.Errorf("repository: page %q changed on disk: %w", slug, apperr.ErrConflict)
	}
	p.ID = rec.ID
	p.CreatedAt = rec.CreatedAt

	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Body != nil {
		p.Body = *in.Body
	}
	if in.Tags != nil {
		p.Tags = *in.Tags
	}
	p.Tags = normalizeTags(p.Tags)

	merged := maps.Clone(p.CustomFields)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, in.CustomFields)
	if p.CustomFields, err = r.prepareFields(p.MetadataType, merged); err != nil {
		return nil, err
	}

	p.UpdatedAt = r.timestamp()
	if err := r.persist(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the page file and its index record. It reports whether
// anything was removed; an absent page is not an error.
func (r *Repository) Delete(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	changed, id, err := r.deleteLocked(slug)
	r.mu.Unlock()
	if err != nil || !changed {
		return changed, err
	}

	if id != 0 {
		r.hook("delete", slug, r.registry.PageDeleted(id))
	}
	r.emit(EventDeleted, slug)
	return true, nil
}

// deleteLocked returns the id of the removed record, or 0 when only an
// unindexed file was removed.
func (r *Repository) deleteLocked(slug string) (bool, int64, error) {
	rec, err := r.index.GetBySlug(slug)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		// A file that was never indexed is still removed.
		loc, locErr := r.store.LocationFor(slug)
		if locErr != nil {
			return false, 0, nil
		}
		removed, err := r.store.Delete(loc)
		return removed, 0, apperr.IO("repository: delete file", err)
	case err != nil:
		return false, 0, apperr.IO("repository: lookup", err)
	}

	if _, err := r.store.Delete(rec.Location); err != nil {
		return false, 0, apperr.IO("repository: delete file", err)
	}
	if _, err := r.index.DeletePage(rec.ID); err != nil {
		return false, 0, apperr.IO("repository: delete record", err)
	}
	return true, rec.ID, nil
}

// List returns every indexed page, newest first. Bodies are not loaded.
func (r *Repository) List(_ context.Context) ([]models.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.ListAll()
}

// prepareFields validates and defaults fields, then gives every value the Go
// type it will have when read back from disk (JSON numbers become ints where
// they are whole, for example).
func (r *Repository) prepareFields(metadataType string, fields map[string]any) (map[string]any, error) {
	prepared, err := r.registry.Prepare(metadataType, fields)
	if err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return map[string]any{}, nil
	}
	raw, err := yaml.Marshal(prepared)
	if err != nil {
		return nil, apperr.Invalid(fmt.Sprintf("custom fields: %v", err))
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Invalid(fmt.Sprintf("custom fields: %v", err))
	}
	return out, nil
}

// persist writes p to disk and then applies its full derived state to the
// index in one transaction.
func (r *Repository) persist(p *models.Page) error {
	if _, err := r.store.Save(p); err != nil {
		return apperr.IO("repository: save", err)
	}
	if _, err := r.index.WritePage(p, wikilink.Extract(p.Body)); err != nil {
		return apperr.IO("repository: index", err)
	}
	return nil
}

// hook logs a failed plugin hook. Hooks run after r.mu is released so they
// may call back into the Repository.
func (r *Repository) hook(op, slug string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("repository: plugin hook failed",
		slog.String("op", op),
		slog.String("slug", slug),
		slog.String("error", err.Error()))
}

func (r *Repository) emit(kind, slug string) {
	if r.onEvent != nil {
		r.onEvent(kind, slug)
	}
}

// timestamp returns the current time in the precision stored on disk and in
// the index.
func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Round(0)
}

// normalizeTags trims, drops empties, dedupes and sorts tag names.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
