//go:build sqlite_fts5

package index

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages_fts`).Scan(&count); err != nil {
		t.Fatalf("pages_fts table missing: %v", err)
	}
}

func TestFTS5_PorterStemming(t *testing.T) {
	db := testDB(t)
	p := page("stem", 0)
	p.Body = "Notes provide powerful searching capabilities."
	write(t, db, p)

	results, err := db.Search("search", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "stem" {
		t.Fatalf("results = %+v", results)
	}
}

func TestFTS5_OperatorsAreLiteral(t *testing.T) {
	db := testDB(t)
	p := page("ops", 0)
	p.Body = "NEAR and OR are plain words here"
	write(t, db, p)

	results, err := db.Search("NEAR OR", 10)
	if err != nil {
		t.Fatalf("Search with operators should not fail: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestFTS5_DeleteRemovesEntry(t *testing.T) {
	db := testDB(t)
	p := page("gone", 0)
	p.Body = "ephemeral"
	id := write(t, db, p)
	if _, err := db.DeletePage(id); err != nil {
		t.Fatal(err)
	}
	var count int
	_ = db.conn.QueryRow(`SELECT count(*) FROM pages_fts WHERE rowid = ?`, id).Scan(&count)
	if count != 0 {
		t.Errorf("fts rows = %d", count)
	}
}
