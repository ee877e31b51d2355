//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/notenest/internal/models"
)

// Without FTS5 the search entries live in a plain table scanned with LIKE.
func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS search_entries (
			page_id INTEGER PRIMARY KEY REFERENCES pages(id) ON DELETE CASCADE,
			slug    TEXT NOT NULL,
			title   TEXT NOT NULL,
			body    TEXT NOT NULL,
			tags    TEXT NOT NULL
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id int64, slug, title, body string, tags []string) error {
	_, err := tx.Exec(`
		INSERT INTO search_entries (page_id, slug, title, body, tags) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(page_id) DO UPDATE SET
			slug  = excluded.slug,
			title = excluded.title,
			body  = excluded.body,
			tags  = excluded.tags
	`, id, slug, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert search entry: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec(`DELETE FROM search_entries WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete search entry: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search requires every term to appear in slug, title, body or tags. Pages
// matching more terms in the title rank first, then newest, then by id.
func (db *DB) Search(query string, limit int) ([]models.Page, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	where, order, args := termClauses(query)
	if where == "" {
		return []models.Page{}, nil
	}
	return db.queryPages(`
		SELECT `+pageColumns+`
		FROM search_entries s
		JOIN pages p ON p.id = s.page_id
		WHERE `+where+`
		ORDER BY `+order+`
		LIMIT ?`, append(args, limit)...)
}

// rankedIDs returns the id of every page matching query in Search order.
func (db *DB) rankedIDs(query string) ([]int64, error) {
	where, order, args := termClauses(query)
	if where == "" {
		return nil, nil
	}
	return db.queryIDs(`
		SELECT p.id
		FROM search_entries s
		JOIN pages p ON p.id = s.page_id
		WHERE `+where+`
		ORDER BY `+order, args...)
}

// termClauses builds the WHERE and ORDER BY expressions for query. The
// returned args bind the WHERE placeholders first, then the ORDER BY ones.
func termClauses(query string) (where, order string, args []any) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return "", "", nil
	}

	var conds, score []string
	var condArgs, scoreArgs []any
	for _, t := range terms {
		like := "%" + likeEscaper.Replace(t) + "%"
		conds = append(conds, `(s.slug LIKE ? ESCAPE '\' OR s.title LIKE ? ESCAPE '\' OR s.body LIKE ? ESCAPE '\' OR s.tags LIKE ? ESCAPE '\')`)
		condArgs = append(condArgs, like, like, like, like)
		score = append(score, `(s.title LIKE ? ESCAPE '\')`)
		scoreArgs = append(scoreArgs, like)
	}
	where = strings.Join(conds, " AND ")
	order = `(` + strings.Join(score, " + ") + `) DESC, p.updated_at DESC, p.id ASC`
	return where, order, append(condArgs, scoreArgs...)
}
