package index

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "notenest-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func page(slug string, minutes int, tags ...string) *models.Page {
	ts := baseTime.Add(time.Duration(minutes) * time.Minute)
	return &models.Page{
		Slug:      slug,
		Title:     "Title " + slug,
		Body:      "body of " + slug,
		Tags:      tags,
		Location:  slug + ".md",
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func write(t *testing.T, db *DB, p *models.Page, links ...string) int64 {
	t.Helper()
	id, err := db.WritePage(p, links)
	if err != nil {
		t.Fatalf("WritePage(%s): %v", p.Slug, err)
	}
	return id
}

func targets(links []models.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.TargetSlug
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"pages", "tags", "page_tags", "links"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAssignsAndUpdates(t *testing.T) {
	db := testDB(t)
	p := page("a", 0)
	p.MetadataType = "recipe"
	p.CustomFields = map[string]any{"servings": 2, "ingredients": []any{"egg"}}
	id, err := db.UpsertPage(p)
	if err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}
	if id == 0 || p.ID != id {
		t.Fatalf("id = %d, p.ID = %d", id, p.ID)
	}

	p.Title = "Renamed"
	p.UpdatedAt = baseTime.Add(time.Hour)
	if id2, err := db.UpsertPage(p); err != nil || id2 != id {
		t.Fatalf("update = %d, %v", id2, err)
	}

	got, err := db.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Renamed" || got.Slug != "a" || got.Location != "a.md" {
		t.Errorf("got %+v", got)
	}
	if !got.UpdatedAt.Equal(p.UpdatedAt) || !got.CreatedAt.Equal(baseTime) {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}
	if got.MetadataType != "recipe" || !reflect.DeepEqual(got.CustomFields, p.CustomFields) {
		t.Errorf("custom = %q %#v", got.MetadataType, got.CustomFields)
	}
}

func TestUpsertSlugConflict(t *testing.T) {
	db := testDB(t)
	write(t, db, page("dup", 0))
	_, err := db.UpsertPage(page("dup", 1))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUpsertUnknownID(t *testing.T) {
	db := testDB(t)
	p := page("ghost", 0)
	p.ID = 42
	if _, err := db.UpsertPage(p); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetBySlug("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetBySlug err = %v", err)
	}
	if _, err := db.GetByID(7); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetByID err = %v", err)
	}
}

func TestListAllOrdering(t *testing.T) {
	db := testDB(t)
	write(t, db, page("old", 0))
	write(t, db, page("new", 10))
	write(t, db, page("tie-a", 5))
	write(t, db, page("tie-b", 5))

	pages, err := db.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	var slugs []string
	for _, p := range pages {
		slugs = append(slugs, p.Slug)
	}
	want := []string{"new", "tie-a", "tie-b", "old"}
	if !reflect.DeepEqual(slugs, want) {
		t.Errorf("order = %v, want %v", slugs, want)
	}
}

func TestSetPageLinksFullReplace(t *testing.T) {
	db := testDB(t)
	id := write(t, db, page("src", 0), "X", "Y")

	if err := db.SetPageLinks(id, []string{"Y"}); err != nil {
		t.Fatal(err)
	}
	out, err := db.OutgoingLinks(id)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(targets(out), []string{"Y"}) {
		t.Errorf("links = %v", targets(out))
	}
	if out[0].SourceSlug != "src" || out[0].Kind != models.LinkKindWiki {
		t.Errorf("link = %+v", out[0])
	}
}

func TestLinksKeepMultiplicityAndOrder(t *testing.T) {
	db := testDB(t)
	id := write(t, db, page("src", 0), "b", "a", "b")
	out, _ := db.OutgoingLinks(id)
	if !reflect.DeepEqual(targets(out), []string{"b", "a", "b"}) {
		t.Errorf("links = %v", targets(out))
	}
	bl, _ := db.Backlinks("b")
	if len(bl) != 2 {
		t.Errorf("backlinks = %d, want 2", len(bl))
	}
}

func TestDeleteCascadesButKeepsIncoming(t *testing.T) {
	db := testDB(t)
	a := write(t, db, page("A", 0, "shared"), "B", "C")
	b := write(t, db, page("B", 1, "shared"), "A")

	deleted, err := db.DeletePage(a)
	if err != nil || !deleted {
		t.Fatalf("DeletePage = %v, %v", deleted, err)
	}
	if bl, _ := db.Backlinks("B"); len(bl) != 0 {
		t.Errorf("backlinks(B) = %v", bl)
	}
	// B -> A survives and is now dangling.
	dangling, _ := db.DanglingLinks()
	if len(dangling) != 1 || dangling[0].SourcePageID != b || dangling[0].TargetSlug != "A" {
		t.Errorf("dangling = %+v", dangling)
	}
	tags, _ := db.AllTags()
	if !reflect.DeepEqual(tags, []models.Tag{{Name: "shared", ReferenceCount: 1}}) {
		t.Errorf("tags = %+v", tags)
	}

	deleted, err = db.DeletePage(a)
	if err != nil || deleted {
		t.Errorf("second DeletePage = %v, %v", deleted, err)
	}
}

func TestDanglingLinks(t *testing.T) {
	db := testDB(t)
	write(t, db, page("A", 0), "B")
	dangling, err := db.DanglingLinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(dangling) != 1 || dangling[0].TargetSlug != "B" {
		t.Fatalf("dangling = %+v", dangling)
	}

	write(t, db, page("B", 1))
	if dangling, _ = db.DanglingLinks(); len(dangling) != 0 {
		t.Errorf("dangling after creating B = %+v", dangling)
	}
}

func TestTagsAggregationAndPrune(t *testing.T) {
	db := testDB(t)
	p1 := write(t, db, page("p1", 0, "python", "go"))
	write(t, db, page("p2", 1, "python"))

	tags, err := db.AllTags()
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Tag{{Name: "python", ReferenceCount: 2}, {Name: "go", ReferenceCount: 1}}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %+v, want %+v", tags, want)
	}

	if err := db.SetPageTags(p1, []string{"rust", "rust", " "}); err != nil {
		t.Fatal(err)
	}
	tags, _ = db.AllTags()
	want = []models.Tag{{Name: "python", ReferenceCount: 1}, {Name: "rust", ReferenceCount: 1}}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %+v, want %+v", tags, want)
	}
	var registry int
	_ = db.conn.QueryRow(`SELECT count(*) FROM tags`).Scan(&registry)
	if registry != 2 {
		t.Errorf("tag rows = %d, want 2 (go pruned)", registry)
	}

	pages, _ := db.PagesByTag("python")
	if len(pages) != 1 || pages[0].Slug != "p2" {
		t.Errorf("pages by tag = %+v", pages)
	}
	got, _ := db.GetByID(p1)
	if !reflect.DeepEqual(got.Tags, []string{"rust"}) {
		t.Errorf("page tags = %v", got.Tags)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	p := page("s", 0, "findme-tag")
	p.Title = "Search Me"
	p.Body = "uniqueword appears here"
	write(t, db, p)
	write(t, db, page("other", 1))

	for _, q := range []string{"uniqueword", "Search", "findme-tag"} {
		results, err := db.Search(q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 1 || results[0].Slug != "s" {
			t.Errorf("Search(%q) = %+v, want 1 hit for s", q, results)
		}
	}
	if results, _ := db.Search("   ", 10); len(results) != 0 {
		t.Errorf("blank query = %+v", results)
	}
}

func TestSearch_EntryReplacedOnRewrite(t *testing.T) {
	db := testDB(t)
	p := page("r", 0)
	p.Body = "alpha"
	write(t, db, p)
	p.Body = "omega"
	write(t, db, p)

	if res, _ := db.Search("alpha", 10); len(res) != 0 {
		t.Errorf("stale entry still searchable: %+v", res)
	}
	if res, _ := db.Search("omega", 10); len(res) != 1 {
		t.Errorf("new entry missing: %+v", res)
	}

	if err := db.IndexForSearch(p.ID, p.Title, "zeta", nil); err != nil {
		t.Fatal(err)
	}
	if res, _ := db.Search("zeta", 10); len(res) != 1 {
		t.Errorf("IndexForSearch not applied: %+v", res)
	}
	if err := db.IndexForSearch(999, "x", "y", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("IndexForSearch unknown id err = %v", err)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	db := testDB(t)
	for i, slug := range []string{"c", "a", "b"} {
		p := page(slug, i)
		p.Body = "common words"
		write(t, db, p)
	}
	first, _ := db.Search("common", 10)
	second, _ := db.Search("common", 10)
	if len(first) != 3 || !reflect.DeepEqual(first, second) {
		t.Errorf("first = %+v second = %+v", first, second)
	}
}

func TestGraph(t *testing.T) {
	db := testDB(t)
	write(t, db, page("p1", 0), "p2", "p3")
	write(t, db, page("p2", 1))

	nodes, edges, err := db.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Errorf("nodes = %+v", nodes)
	}
	want := []models.GraphEdge{
		{Source: "p1", Target: "p2", Dangling: false},
		{Source: "p1", Target: "p3", Dangling: true},
	}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("edges = %+v", edges)
	}
}

func TestFingerprints(t *testing.T) {
	db := testDB(t)
	p := page("f", 0)
	p.Checksum = "abc123"
	id := write(t, db, p)

	fps, err := db.Fingerprints()
	if err != nil {
		t.Fatal(err)
	}
	if fps["f"] != (Fingerprint{ID: id, Checksum: "abc123"}) {
		t.Errorf("fingerprints = %+v", fps)
	}
}
