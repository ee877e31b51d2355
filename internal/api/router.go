package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notenest/internal/repository"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
//
// Slugs may contain slashes, so page routes take the slug as the wildcard
// remainder of the path.
func NewRouter(repo *repository.Repository, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(repo)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Pages CRUD.
	r.Get("/pages", h.ListPages)
	r.Post("/pages", h.CreatePage)
	r.Get("/pages/*", h.GetPage)
	r.Patch("/pages/*", h.UpdatePage)
	r.Delete("/pages/*", h.DeletePage)

	// Link graph.
	r.Get("/outgoing/*", h.OutgoingLinks)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/dangling", h.DanglingLinks)
	r.Get("/graph", h.Graph)

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Get("/tags/{name}/pages", h.PagesByTag)

	// Search.
	r.Get("/search", h.Search)

	// Maintenance and plugins.
	r.Post("/reconcile", h.Reconcile)
	r.Get("/plugins", h.ListPlugins)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
