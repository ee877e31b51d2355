package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/notenest/internal/apperr"
)

// IndexForSearch replaces the search entry of page id.
func (db *DB) IndexForSearch(id int64, title, body string, tags []string) error {
	return db.withTx(func(tx *sql.Tx) error {
		var slug string
		if err := tx.QueryRow(`SELECT slug FROM pages WHERE id = ?`, id).Scan(&slug); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("index: page %d: %w", id, apperr.ErrNotFound)
			}
			return fmt.Errorf("index: lookup page: %w", err)
		}
		return ftsUpsert(tx, id, slug, title, body, tags)
	})
}
