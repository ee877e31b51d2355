//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/notenest/internal/models"
)

// The FTS rowid is the page id.
func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
			slug,
			title,
			body,
			tags,
			tokenize = 'porter unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id int64, slug, title, body string, tags []string) error {
	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO pages_fts (rowid, slug, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		id, slug, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec(`DELETE FROM pages_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// matchQuery quotes every whitespace separated term so FTS5 operators in user
// input are matched literally; the terms are ANDed.
func matchQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// Search ranks pages by bm25 with ties broken by id.
func (db *DB) Search(query string, limit int) ([]models.Page, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	match := matchQuery(query)
	if match == "" {
		return []models.Page{}, nil
	}
	return db.queryPages(`
		SELECT `+pageColumns+`
		FROM pages_fts f
		JOIN pages p ON p.id = f.rowid
		WHERE pages_fts MATCH ?
		ORDER BY bm25(pages_fts), p.id
		LIMIT ?
	`, match, limit)
}

// rankedIDs returns the id of every page matching query, best match first.
func (db *DB) rankedIDs(query string) ([]int64, error) {
	match := matchQuery(query)
	if match == "" {
		return nil, nil
	}
	return db.queryIDs(`
		SELECT rowid FROM pages_fts
		WHERE pages_fts MATCH ?
		ORDER BY bm25(pages_fts), rowid
	`, match)
}
