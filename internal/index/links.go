package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/notenest/internal/models"
)

const linkColumns = `l.id, l.source_page_id, p.slug, l.target_slug, l.link_kind`

// SetPageLinks replaces every outgoing edge of sourceID with one edge per
// entry of targets, in order. Duplicates are kept.
func (db *DB) SetPageLinks(sourceID int64, targets []string) error {
	return db.withTx(func(tx *sql.Tx) error {
		return setPageLinksTx(tx, sourceID, targets)
	})
}

func setPageLinksTx(tx *sql.Tx, sourceID int64, targets []string) error {
	if _, err := tx.Exec(`DELETE FROM links WHERE source_page_id = ?`, sourceID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO links (source_page_id, target_slug, link_kind) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, target := range targets {
		if _, err := stmt.Exec(sourceID, target, models.LinkKindWiki); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	return nil
}

// OutgoingLinks returns the edges of page id in extraction order.
func (db *DB) OutgoingLinks(id int64) ([]models.Link, error) {
	return db.queryLinks(`
		SELECT `+linkColumns+`
		FROM links l
		JOIN pages p ON p.id = l.source_page_id
		WHERE l.source_page_id = ?
		ORDER BY l.id
	`, id)
}

// Backlinks returns every edge whose target is slug, joined to the current
// slug of its source page.
func (db *DB) Backlinks(slug string) ([]models.Link, error) {
	return db.queryLinks(`
		SELECT `+linkColumns+`
		FROM links l
		JOIN pages p ON p.id = l.source_page_id
		WHERE l.target_slug = ?
		ORDER BY p.slug, l.id
	`, slug)
}

// DanglingLinks returns every edge whose target matches no live page slug.
func (db *DB) DanglingLinks() ([]models.Link, error) {
	return db.queryLinks(`
		SELECT ` + linkColumns + `
		FROM links l
		JOIN pages p ON p.id = l.source_page_id
		WHERE l.target_slug NOT IN (SELECT slug FROM pages)
		ORDER BY p.slug, l.id
	`)
}

// Graph returns all pages as nodes and all edges, flagging dangling ones.
func (db *DB) Graph() ([]models.GraphNode, []models.GraphEdge, error) {
	nodeRows, err := db.conn.Query(`SELECT slug, title FROM pages ORDER BY slug`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	nodes := []models.GraphNode{}
	for nodeRows.Next() {
		var n models.GraphNode
		if err := nodeRows.Scan(&n.Slug, &n.Title); err != nil {
			nodeRows.Close()
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	nodeRows.Close()
	if err := nodeRows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := db.conn.Query(`
		SELECT p.slug, l.target_slug,
		       NOT EXISTS (SELECT 1 FROM pages t WHERE t.slug = l.target_slug)
		FROM links l
		JOIN pages p ON p.id = l.source_page_id
		ORDER BY p.slug, l.id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph edges: %w", err)
	}
	defer edgeRows.Close()
	edges := []models.GraphEdge{}
	for edgeRows.Next() {
		var e models.GraphEdge
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Dangling); err != nil {
			return nil, nil, err
		}
		edges = append(edges, e)
	}
	return nodes, edges, edgeRows.Err()
}

func (db *DB) queryLinks(query string, args ...any) ([]models.Link, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query links: %w", err)
	}
	defer rows.Close()

	out := []models.Link{}
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.SourcePageID, &l.SourceSlug, &l.TargetSlug, &l.Kind); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
