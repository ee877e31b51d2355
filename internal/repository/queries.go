package repository

import (
	"context"

	"github.com/starford/notenest/internal/index"
	"github.com/starford/notenest/internal/models"
)

// OutgoingLinks returns the edges of the page at slug in extraction order.
func (r *Repository) OutgoingLinks(_ context.Context, slug string) ([]models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.index.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	return r.index.OutgoingLinks(rec.ID)
}

// Backlinks returns every edge targeting slug, whether or not a page with that
// slug exists.
func (r *Repository) Backlinks(_ context.Context, slug string) ([]models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Backlinks(slug)
}

// DanglingLinks returns every edge whose target has no live page.
func (r *Repository) DanglingLinks(_ context.Context) ([]models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.DanglingLinks()
}

// Tags returns all tags with live reference counts.
func (r *Repository) Tags(_ context.Context) ([]models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.AllTags()
}

// TagsOf returns the tag names of the page at slug.
func (r *Repository) TagsOf(_ context.Context, slug string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.index.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	return rec.Tags, nil
}

// PagesByTag returns the pages carrying the tag name.
func (r *Repository) PagesByTag(_ context.Context, name string) ([]models.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.PagesByTag(name)
}

// Search runs a full-text query. limit <= 0 selects the index default.
func (r *Repository) Search(_ context.Context, query string, limit int) ([]models.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Search(query, limit)
}

// Find returns one page of the pages matching f and the total number of
// matches. Bodies are not loaded.
func (r *Repository) Find(_ context.Context, f index.Filter) ([]models.Page, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Find(f)
}

// Graph returns every page as a node and every edge, dangling ones flagged.
func (r *Repository) Graph(_ context.Context) ([]models.GraphNode, []models.GraphEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Graph()
}
