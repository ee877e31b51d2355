package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/models"
	"github.com/starford/notenest/internal/repository"
	"github.com/starford/notenest/internal/testutil"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

// snapshot captures every query result the repository exposes.
type snapshot struct {
	Pages     []models.Page
	Tags      []models.Tag
	Dangling  []models.Link
	Backlinks map[string][]models.Link
	Outgoing  map[string][]models.Link
	Nodes     []models.GraphNode
	Edges     []models.GraphEdge
	Search    []models.Page
}

func takeSnapshot(t *testing.T, r *repository.Repository) snapshot {
	t.Helper()
	ctx := context.Background()
	var s snapshot
	var err error

	s.Pages, err = r.List(ctx)
	require.NoError(t, err)
	s.Tags, err = r.Tags(ctx)
	require.NoError(t, err)
	s.Dangling, err = r.DanglingLinks(ctx)
	require.NoError(t, err)
	s.Nodes, s.Edges, err = r.Graph(ctx)
	require.NoError(t, err)
	s.Search, err = r.Search(ctx, "alpha", 0)
	require.NoError(t, err)

	s.Backlinks = map[string][]models.Link{}
	s.Outgoing = map[string][]models.Link{}
	for _, p := range s.Pages {
		s.Backlinks[p.Slug], err = r.Backlinks(ctx, p.Slug)
		require.NoError(t, err)
		s.Outgoing[p.Slug], err = r.OutgoingLinks(ctx, p.Slug)
		require.NoError(t, err)
	}
	return s
}

func TestReconcile_IndexesExistingFiles(t *testing.T) {
	env := testutil.TestRepository(t)
	ctx := context.Background()
	writeFile(t, env.Dir, "alpha.md", "---\ntitle: Alpha\ntags: [x, y]\n---\n\nalpha links to [[beta]] and [[gamma]]\n")
	writeFile(t, env.Dir, "sub/beta.md", "# Beta heading\n\nplain file\n")
	writeFile(t, env.Dir, "beta.md", "beta with no metadata")

	rep, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 3, rep.Created)
	assert.Empty(t, rep.Failed)

	alpha, err := env.Repo.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", alpha.Title)
	assert.Equal(t, []string{"x", "y"}, alpha.Tags)
	assert.Equal(t, "alpha links to [[beta]] and [[gamma]]\n", alpha.Body)

	sub, err := env.Repo.Get(ctx, "sub/beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta heading", sub.Title)

	dangling, err := env.Repo.DanglingLinks(ctx)
	require.NoError(t, err)
	require.Len(t, dangling, 1)
	assert.Equal(t, "gamma", dangling[0].TargetSlug)
}

func TestReconcile_Idempotent(t *testing.T) {
	env := testutil.TestRepository(t)
	ctx := context.Background()
	writeFile(t, env.Dir, "alpha.md", "---\ntitle: Alpha\ntags: [x]\n---\n\nalpha [[beta]] [[nowhere]]\n")
	writeFile(t, env.Dir, "beta.md", "---\ntitle: Beta\ntags: [x, z]\n---\n\nback to [[alpha]]\n")
	create(t, env.Repo, "gamma", "alpha mention", "z")

	first, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 1, first.Unchanged)
	before := takeSnapshot(t, env.Repo)

	second, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Unchanged)
	assert.NotEqual(t, first.RunID, second.RunID)

	after := takeSnapshot(t, env.Repo)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("second reconcile changed state (-before +after):\n%s", diff)
	}
}

func TestReconcile_PicksUpExternalEdit(t *testing.T) {
	clock := newClock()
	env := testutil.TestRepository(t, repository.WithClock(clock.Now))
	ctx := context.Background()
	orig := create(t, env.Repo, "page", "no links", "old")

	writeFile(t, env.Dir, "page.md", "---\ntitle: Edited\ntags: [new]\n---\n\nnow [[elsewhere]]\n")

	rep, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)

	got, err := env.Repo.Get(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, "Edited", got.Title)
	assert.Equal(t, []string{"new"}, got.Tags)
	assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))

	out, err := env.Repo.OutgoingLinks(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"elsewhere"}, linkTargets(out))

	tags, err := env.Repo.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{{Name: "new", ReferenceCount: 1}}, tags)
}

func TestReconcile_SkipsInvalidFiles(t *testing.T) {
	env := testutil.TestRepository(t)
	ctx := context.Background()
	writeFile(t, env.Dir, "bad.md", "---\ntitle: Bad\nmetadata_type: recipe\ncustom_fields:\n  rating: 11\n---\n\nbody\n")
	writeFile(t, env.Dir, "good.md", "good")

	rep, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "bad.md", rep.Failed[0].Location)
	assert.Contains(t, rep.Failed[0].Error, "rating")

	_, err = env.Repo.Get(ctx, "bad")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = env.Repo.Get(ctx, "good")
	assert.NoError(t, err)
}

func TestReconcile_KeepsOrphansByDefault(t *testing.T) {
	env := testutil.TestRepository(t)
	ctx := context.Background()
	create(t, env.Repo, "orphan", "")
	require.NoError(t, os.Remove(filepath.Join(env.Dir, "orphan.md")))

	rep, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Pruned)

	pages, err := env.Repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "orphan", pages[0].Slug)
}

func TestReconcile_PrunesOrphansWhenEnabled(t *testing.T) {
	var deleted []string
	env := testutil.TestRepository(t,
		repository.WithPrune(true),
		repository.WithEventCallback(func(kind, slug string) {
			if kind == repository.EventDeleted {
				deleted = append(deleted, slug)
			}
		}))
	ctx := context.Background()
	create(t, env.Repo, "orphan", "", "lonely")
	create(t, env.Repo, "kept", "[[orphan]]")
	require.NoError(t, os.Remove(filepath.Join(env.Dir, "orphan.md")))

	rep, err := env.Repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Pruned)
	assert.Equal(t, []string{"orphan"}, deleted)

	pages, err := env.Repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "kept", pages[0].Slug)

	tags, err := env.Repo.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	dangling, err := env.Repo.DanglingLinks(ctx)
	require.NoError(t, err)
	require.Len(t, dangling, 1)
	assert.Equal(t, "orphan", dangling[0].TargetSlug)
}

func TestReconcile_Cancelled(t *testing.T) {
	env := testutil.TestRepository(t)
	writeFile(t, env.Dir, "a.md", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.Repo.Reconcile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
