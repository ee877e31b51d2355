// Package testutil provides shared test helpers for setting up workspaces,
// databases and repositories.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/notenest/internal/index"
	"github.com/starford/notenest/internal/plugin"
	"github.com/starford/notenest/internal/repository"
	"github.com/starford/notenest/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notenest-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary pages directory with a file store.
func TestWorkspace(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a JSON logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Env bundles a repository with the stores behind it.
type Env struct {
	Dir   string
	Store *storage.FS
	DB    *index.DB
	Repo  *repository.Repository
}

// TestRepository builds a repository over a fresh workspace and database with
// the built-in plugins registered. opts are applied after the defaults.
func TestRepository(t *testing.T, opts ...repository.Option) *Env {
	t.Helper()
	dir, store := TestWorkspace(t)
	db := TestDB(t)
	reg, err := plugin.NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	all := append([]repository.Option{
		repository.WithRegistry(reg),
		repository.WithLogger(Logger()),
	}, opts...)
	return &Env{
		Dir:   dir,
		Store: store,
		DB:    db,
		Repo:  repository.New(store, db, all...),
	}
}
