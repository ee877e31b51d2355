package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notenest/internal/repository"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Workspace.Path = t.TempDir()
	return cfg
}

func TestReconcileOnce_IndexesWorkspace(t *testing.T) {
	cfg := testConfig(t)
	pages := cfg.Workspace.PagesDir()
	if err := os.MkdirAll(filepath.Join(pages, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pages, "notes", "a.md"), []byte("# A\nsee [[b]]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rep, err := ReconcileOnce(context.Background(), &out, WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if rep.Created != 1 {
		t.Errorf("Created = %d, want 1", rep.Created)
	}

	var decoded repository.Report
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("report output: %v", err)
	}
	if decoded.RunID != rep.RunID {
		t.Errorf("printed run id = %q, want %q", decoded.RunID, rep.RunID)
	}

	if _, err := os.Stat(cfg.IndexPath()); err != nil {
		t.Errorf("index not created at default path: %v", err)
	}

	// Second pass finds nothing to do.
	rep, err = ReconcileOnce(context.Background(), nil, WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Created != 0 || rep.Updated != 0 || rep.Unchanged != 1 {
		t.Errorf("second pass = %+v", rep)
	}
}

func TestReconcileOnce_RequiresConfig(t *testing.T) {
	if _, err := ReconcileOnce(context.Background(), nil, WithLogOutput(io.Discard)); err == nil {
		t.Fatal("missing config should fail")
	}
}
