package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/models"
)

const pageColumns = `p.id, p.slug, p.title, p.location, p.metadata_type, p.custom_fields, p.checksum, p.created_at, p.updated_at`

// Fingerprint is the index's view of one page file, used by reconciliation.
type Fingerprint struct {
	ID       int64
	Checksum string
}

type rowScanner interface {
	Scan(dest ...any) error
}

// WritePage applies the full derived state of p in one transaction: the page
// record, its tag set, its outgoing edges (one per entry of links) and its
// search entry. It assigns p.ID for new pages and returns it.
func (db *DB) WritePage(p *models.Page, links []string) (int64, error) {
	err := db.withTx(func(tx *sql.Tx) error {
		id, err := upsertPageTx(tx, p)
		if err != nil {
			return err
		}
		if err := setPageTagsTx(tx, id, p.Tags); err != nil {
			return err
		}
		if err := setPageLinksTx(tx, id, links); err != nil {
			return err
		}
		if err := ftsUpsert(tx, id, p.Slug, p.Title, p.Body, p.Tags); err != nil {
			return err
		}
		p.ID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// UpsertPage inserts p when p.ID is unset, otherwise updates the record with
// that id. A slug owned by another page yields apperr.ErrConflict.
func (db *DB) UpsertPage(p *models.Page) (int64, error) {
	var id int64
	err := db.withTx(func(tx *sql.Tx) error {
		var err error
		id, err = upsertPageTx(tx, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

func upsertPageTx(tx *sql.Tx, p *models.Page) (int64, error) {
	var owner int64
	err := tx.QueryRow(`SELECT id FROM pages WHERE slug = ?`, p.Slug).Scan(&owner)
	switch {
	case err == nil && owner != p.ID:
		return 0, fmt.Errorf("index: slug %q owned by page %d: %w", p.Slug, owner, apperr.ErrConflict)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("index: lookup slug: %w", err)
	}

	custom, err := encodeCustom(p.CustomFields)
	if err != nil {
		return 0, err
	}
	mt := p.MetadataType
	if mt == "" {
		mt = models.DefaultMetadataType
	}

	if p.ID == 0 {
		res, err := tx.Exec(`
			INSERT INTO pages (slug, title, location, metadata_type, custom_fields, checksum, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.Slug, p.Title, p.Location, mt, custom, p.Checksum, p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("index: insert page: %w", err)
		}
		return res.LastInsertId()
	}

	res, err := tx.Exec(`
		UPDATE pages SET
			slug          = ?,
			title         = ?,
			location      = ?,
			metadata_type = ?,
			custom_fields = ?,
			checksum      = ?,
			updated_at    = ?
		WHERE id = ?
	`, p.Slug, p.Title, p.Location, mt, custom, p.Checksum, p.UpdatedAt.UnixNano(), p.ID)
	if err != nil {
		return 0, fmt.Errorf("index: update page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("index: page %d: %w", p.ID, apperr.ErrNotFound)
	}
	return p.ID, nil
}

// GetByID returns the page record with its tags. Body is not stored here.
func (db *DB) GetByID(id int64) (*models.Page, error) {
	row := db.conn.QueryRow(`SELECT `+pageColumns+` FROM pages p WHERE p.id = ?`, id)
	return db.finishGet(row, fmt.Sprintf("page %d", id))
}

// GetBySlug returns the live page record for slug with its tags.
func (db *DB) GetBySlug(slug string) (*models.Page, error) {
	row := db.conn.QueryRow(`SELECT `+pageColumns+` FROM pages p WHERE p.slug = ?`, slug)
	return db.finishGet(row, fmt.Sprintf("page %q", slug))
}

func (db *DB) finishGet(row *sql.Row, what string) (*models.Page, error) {
	p, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("index: %s: %w", what, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("index: get %s: %w", what, err)
	}
	if p.Tags, err = db.PageTags(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListAll returns every page ordered by updated_at descending, then id.
func (db *DB) ListAll() ([]models.Page, error) {
	return db.queryPages(`SELECT ` + pageColumns + ` FROM pages p ORDER BY p.updated_at DESC, p.id ASC`)
}

// DeletePage removes the page record together with its tag associations,
// outgoing edges and search entry. Edges from other pages that target its slug
// are kept. It reports whether a record existed.
func (db *DB) DeletePage(id int64) (bool, error) {
	var deleted bool
	err := db.withTx(func(tx *sql.Tx) error {
		if err := ftsDelete(tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM links WHERE source_page_id = ?`, id); err != nil {
			return fmt.Errorf("index: delete links: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM page_tags WHERE page_id = ?`, id); err != nil {
			return fmt.Errorf("index: delete page tags: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM pages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("index: delete page: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return pruneTagsTx(tx)
	})
	return deleted, err
}

// Fingerprints returns id and checksum for every indexed slug.
func (db *DB) Fingerprints() (map[string]Fingerprint, error) {
	rows, err := db.conn.Query(`SELECT slug, id, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Fingerprint)
	for rows.Next() {
		var slug string
		var fp Fingerprint
		if err := rows.Scan(&slug, &fp.ID, &fp.Checksum); err != nil {
			return nil, err
		}
		out[slug] = fp
	}
	return out, rows.Err()
}

// queryPages runs a page query and attaches tags to every result.
func (db *DB) queryPages(query string, args ...any) ([]models.Page, error) {
	out, err := db.scanPages(query, args...)
	if err != nil {
		return nil, err
	}
	if err := db.attachTags(out); err != nil {
		return nil, err
	}
	return out, nil
}

// scanPages runs a page query without loading tags.
func (db *DB) scanPages(query string, args ...any) ([]models.Page, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query pages: %w", err)
	}
	defer rows.Close()

	out := []models.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan page: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (db *DB) attachTags(pages []models.Page) error {
	for i := range pages {
		tags, err := db.PageTags(pages[i].ID)
		if err != nil {
			return err
		}
		pages[i].Tags = tags
	}
	return nil
}

func scanPage(s rowScanner) (*models.Page, error) {
	var (
		p                models.Page
		custom           string
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Title, &p.Location, &p.MetadataType, &custom, &p.Checksum, &created, &updated); err != nil {
		return nil, err
	}
	fields, err := decodeCustom(custom)
	if err != nil {
		return nil, err
	}
	p.CustomFields = fields
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}

// Custom fields are stored as YAML so values decode to the same Go types as
// the page file's field block.
func encodeCustom(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("index: encode custom fields: %w", err)
	}
	return string(out), nil
}

func decodeCustom(raw string) (map[string]any, error) {
	fields := map[string]any{}
	if raw == "" {
		return fields, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("index: decode custom fields: %w", err)
	}
	return fields, nil
}
