package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/notenest/internal/models"
)

// SetPageTags replaces the tag set of page id with exactly names. Tags left
// without pages are pruned.
func (db *DB) SetPageTags(id int64, names []string) error {
	return db.withTx(func(tx *sql.Tx) error {
		return setPageTagsTx(tx, id, names)
	})
}

func setPageTagsTx(tx *sql.Tx, id int64, names []string) error {
	if _, err := tx.Exec(`DELETE FROM page_tags WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("index: clear page tags: %w", err)
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("index: insert tag: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO page_tags (page_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?
		`, id, name); err != nil {
			return fmt.Errorf("index: link tag: %w", err)
		}
	}
	return pruneTagsTx(tx)
}

// pruneTagsTx drops tags with no remaining page, keeping the registry equal to
// the set of tags in use.
func pruneTagsTx(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM tags WHERE id NOT IN (SELECT DISTINCT tag_id FROM page_tags)`); err != nil {
		return fmt.Errorf("index: prune tags: %w", err)
	}
	return nil
}

// PageTags returns the tag names of page id in name order.
func (db *DB) PageTags(id int64) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT t.name
		FROM tags t
		JOIN page_tags pt ON pt.tag_id = t.id
		WHERE pt.page_id = ?
		ORDER BY t.name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: page tags: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// AllTags returns every tag with its live reference count, most used first and
// then by name.
func (db *DB) AllTags() ([]models.Tag, error) {
	rows, err := db.conn.Query(`
		SELECT t.name, COUNT(pt.page_id) AS refs
		FROM tags t
		JOIN page_tags pt ON pt.tag_id = t.id
		GROUP BY t.id, t.name
		ORDER BY refs DESC, t.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all tags: %w", err)
	}
	defer rows.Close()

	out := []models.Tag{}
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.Name, &tag.ReferenceCount); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// PagesByTag returns the pages carrying name, newest first.
func (db *DB) PagesByTag(name string) ([]models.Page, error) {
	return db.queryPages(`
		SELECT `+pageColumns+`
		FROM pages p
		JOIN page_tags pt ON pt.page_id = p.id
		JOIN tags t ON t.id = pt.tag_id
		WHERE t.name = ?
		ORDER BY p.updated_at DESC, p.id ASC
	`, name)
}
