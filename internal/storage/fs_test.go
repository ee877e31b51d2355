package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/models"
)

func tempPages(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func samplePage(slug string) *models.Page {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	return &models.Page{
		Slug:         slug,
		Title:        "Sample " + slug,
		Body:         "Body of " + slug + " with [[other]].\n",
		Tags:         []string{"go", "notes"},
		MetadataType: "recipe",
		CustomFields: map[string]any{"servings": 2, "ingredients": []any{"egg"}},
		CreatedAt:    ts,
		UpdatedAt:    ts.Add(time.Hour),
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := tempPages(t)
	p := samplePage("hello")
	loc, err := s.Save(p)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if loc != "hello.md" || p.Location != "hello.md" || p.Checksum == "" {
		t.Fatalf("loc = %q, page = %+v", loc, p)
	}

	got, err := s.Load(loc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != 0 {
		t.Errorf("ID = %d, want unset", got.ID)
	}
	if got.Slug != "hello" || got.Title != p.Title || got.Body != p.Body {
		t.Errorf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, p.Tags) {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.MetadataType != "recipe" || !reflect.DeepEqual(got.CustomFields, p.CustomFields) {
		t.Errorf("metadata = %q %#v", got.MetadataType, got.CustomFields)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Errorf("timestamps = %v %v", got.CreatedAt, got.UpdatedAt)
	}
	if got.Checksum != p.Checksum {
		t.Errorf("checksum = %q, want %q", got.Checksum, p.Checksum)
	}
}

func TestSaveCreatesSubdirs(t *testing.T) {
	s := tempPages(t)
	loc, err := s.Save(samplePage("a/b/c"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if loc != "a/b/c.md" {
		t.Errorf("loc = %q", loc)
	}
	got, err := s.Load(loc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Slug != "a/b/c" {
		t.Errorf("slug = %q", got.Slug)
	}
}

func TestSaveReusesKnownLocation(t *testing.T) {
	s := tempPages(t)
	p := samplePage("x")
	p.Location = "elsewhere/x.md"
	loc, err := s.Save(p)
	if err != nil {
		t.Fatal(err)
	}
	if loc != "elsewhere/x.md" || !s.Exists("elsewhere/x.md") || s.Exists("x.md") {
		t.Errorf("loc = %q", loc)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := tempPages(t)
	_, err := s.Load("missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadPlainFile(t *testing.T) {
	s := tempPages(t)
	_ = os.WriteFile(filepath.Join(s.root, "plain.md"), []byte("# Plain Heading\ntext [[x]]\n"), 0o644)
	p, err := s.Load("plain.md")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Plain Heading" || p.Body != "# Plain Heading\ntext [[x]]\n" {
		t.Errorf("page = %+v", p)
	}
	if p.MetadataType != models.DefaultMetadataType || len(p.Tags) != 0 {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("created should fall back to mtime")
	}
}

func TestLoadTitleFallsBackToSlug(t *testing.T) {
	s := tempPages(t)
	_ = os.MkdirAll(filepath.Join(s.root, "dir"), 0o755)
	_ = os.WriteFile(filepath.Join(s.root, "dir", "bare.md"), []byte("no heading"), 0o644)
	p, err := s.Load("dir/bare.md")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "bare" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestLoadKeepsUnknownKeys(t *testing.T) {
	s := tempPages(t)
	content := "---\ntitle: T\nauthor: someone\ntags: a, b\ncreated: 2024-01-02\n---\n\nbody"
	_ = os.WriteFile(filepath.Join(s.root, "k.md"), []byte(content), 0o644)
	p, err := s.Load("k.md")
	if err != nil {
		t.Fatal(err)
	}
	if p.CustomFields["author"] != "someone" {
		t.Errorf("custom = %#v", p.CustomFields)
	}
	if !reflect.DeepEqual(p.Tags, []string{"a", "b"}) {
		t.Errorf("tags = %v", p.Tags)
	}
	if p.CreatedAt.Year() != 2024 || p.CreatedAt.Day() != 2 {
		t.Errorf("created = %v", p.CreatedAt)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := tempPages(t)
	_, _ = s.Save(samplePage("del"))
	removed, err := s.Delete("del.md")
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	removed, err = s.Delete("del.md")
	if err != nil || removed {
		t.Fatalf("second Delete = %v, %v", removed, err)
	}
}

func TestEnumerate(t *testing.T) {
	s := tempPages(t)
	_, _ = s.Save(samplePage("b"))
	_, _ = s.Save(samplePage("sub/a"))
	_ = os.WriteFile(filepath.Join(s.root, "readme.txt"), []byte("not md"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.root, ".hidden"), 0o755)
	_ = os.WriteFile(filepath.Join(s.root, ".hidden", "x.md"), []byte("x"), 0o644)

	items, err := s.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	want := []string{"b.md", "sub/a.md"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempPages(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Load(p); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Load(%q) err = %v, want ErrInvalid", p, err)
		}
		if _, err := s.Delete(p); err == nil {
			t.Errorf("expected error for delete of %q", p)
		}
	}
}

func TestValidateSlug(t *testing.T) {
	for _, ok := range []string{"p1", "sub/page", "with space", "a.b"} {
		if err := ValidateSlug(ok); err != nil {
			t.Errorf("ValidateSlug(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "  ", "../x", "/abs", "a//b", "a/", ".hidden", "a/.b", `a\b`} {
		if err := ValidateSlug(bad); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("ValidateSlug(%q) = %v, want ErrInvalid", bad, err)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempPages(t)
	p := samplePage("atomic")
	_, _ = s.Save(p)
	p.Body = "updated content"
	if _, err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load("atomic.md")
	if got.Body != "updated content" {
		t.Errorf("expected updated content, got %q", got.Body)
	}

	entries, _ := os.ReadDir(s.root)
	for _, e := range entries {
		if e.Name() != "atomic.md" {
			t.Errorf("leftover file: %s", e.Name())
		}
	}
	info, _ := os.Stat(filepath.Join(s.root, "atomic.md"))
	if info.Mode().Perm() != filePerms {
		t.Errorf("perm = %v", info.Mode().Perm())
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, nil, 0o644)
	_, err := NewFS(f)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("err = %v", err)
	}
}

func TestParse(t *testing.T) {
	mod := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Parse("---\ntags: [a, b]\nmetadata_type: recipe\nservings: 4\n---\n# Soup\nHot.\n", mod)
	if p.Title != "Soup" {
		t.Errorf("Title = %q, want heading", p.Title)
	}
	if len(p.Tags) != 2 || p.MetadataType != "recipe" {
		t.Errorf("page = %+v", p)
	}
	if p.CustomFields["servings"] != 4 {
		t.Errorf("CustomFields = %v", p.CustomFields)
	}
	if !p.CreatedAt.Equal(mod) || p.Body != "# Soup\nHot.\n" {
		t.Errorf("CreatedAt = %v, Body = %q", p.CreatedAt, p.Body)
	}
}
