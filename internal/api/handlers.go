package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notenest/internal/index"
	"github.com/starford/notenest/internal/models"
	"github.com/starford/notenest/internal/repository"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	repo *repository.Repository
}

// NewHandler creates a new Handler.
func NewHandler(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// pageSlug extracts the slug from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. recipes%2Fcurry).
func pageSlug(r *http.Request) string {
	raw := strings.Trim(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPages handles GET /api/pages.
//
//	@Summary		List pages, newest first
//	@Tags			pages
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size, all pages when omitted"
//	@Param			offset	query		int		false	"Pages to skip"
//	@Success		200		{object}	PageListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := parsePaging(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	f := index.Filter{Limit: limit, Offset: offset}
	if tag := q.Get("tag"); tag != "" {
		f.Tags = []string{tag}
	}
	pages, total, err := h.repo.Find(r.Context(), f)
	if err != nil {
		writeError(w, "list pages", err)
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: toListItems(pages), Total: total})
}

// GetPage handles GET /api/pages/*.
//
//	@Summary		Get a single page by slug
//	@Tags			pages
//	@Produce		json
//	@Param			slug	path		string	true	"Page slug"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{slug} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	slug := pageSlug(r)
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	page, err := h.repo.Get(r.Context(), slug)
	if err != nil {
		writeError(w, "get page", err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, page)
}

// CreatePage handles POST /api/pages.
//
//	@Summary		Create a new page
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePageRequest	true	"Page to create"
//	@Success		201		{object}	PageDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages [post]
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	page, err := h.repo.Create(r.Context(), repository.CreateInput{
		Slug:         req.Slug,
		Title:        req.Title,
		Body:         req.Body,
		Tags:         req.Tags,
		MetadataType: req.MetadataType,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		writeError(w, "create page", err)
		return
	}
	h.writeDetail(w, r, http.StatusCreated, page)
}

// UpdatePage handles PATCH /api/pages/*.
//
//	@Summary		Update a page with optional optimistic concurrency
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			slug		path		string				true	"Page slug"
//	@Param			If-Match	header		string				false	"SHA-256 checksum of the current file"
//	@Param			body		body		UpdatePageRequest	true	"Fields to change"
//	@Success		200			{object}	PageDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{slug} [patch]
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	slug := pageSlug(r)
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	var req UpdatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	page, err := h.repo.Update(r.Context(), slug, repository.UpdateInput{
		Title:        req.Title,
		Body:         req.Body,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
		IfMatch:      ifMatch,
	})
	if err != nil {
		writeError(w, "update page", err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, page)
}

// DeletePage handles DELETE /api/pages/*.
//
//	@Summary		Delete a page
//	@Tags			pages
//	@Param			slug	path	string	true	"Page slug"
//	@Success		204		"Page deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{slug} [delete]
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	slug := pageSlug(r)
	if slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	deleted, err := h.repo.Delete(r.Context(), slug)
	if err != nil {
		writeError(w, "delete page", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OutgoingLinks handles GET /api/outgoing/*.
//
//	@Summary		Edges leaving a page, in body order
//	@Tags			links
//	@Produce		json
//	@Param			slug	path		string	true	"Page slug"
//	@Success		200		{object}	LinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outgoing/{slug} [get]
func (h *Handler) OutgoingLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.repo.OutgoingLinks(r.Context(), pageSlug(r))
	if err != nil {
		writeError(w, "outgoing links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		Edges targeting a slug
//	@Tags			links
//	@Produce		json
//	@Param			slug	path		string	true	"Target slug"
//	@Success		200		{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{slug} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.repo.Backlinks(r.Context(), pageSlug(r))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// DanglingLinks handles GET /api/dangling.
//
//	@Summary		Edges whose target page does not exist
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/dangling [get]
func (h *Handler) DanglingLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.repo.DanglingLinks(r.Context())
	if err != nil {
		writeError(w, "dangling links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: links})
}

// ListTags handles GET /api/tags.
//
//	@Summary		All tags with reference counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.repo.Tags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// PagesByTag handles GET /api/tags/{name}/pages.
//
//	@Summary		Pages carrying a tag
//	@Tags			tags
//	@Produce		json
//	@Param			name	path		string	true	"Tag name"
//	@Success		200		{object}	PageListResponse
//	@Security		BearerAuth
//	@Router			/tags/{name}/pages [get]
func (h *Handler) PagesByTag(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid tag"))
		return
	}
	pages, err := h.repo.PagesByTag(r.Context(), name)
	if err != nil {
		writeError(w, "pages by tag", err)
		return
	}
	items := toListItems(pages)
	writeJSON(w, http.StatusOK, PageListResponse{Pages: items, Total: len(items)})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search and filtering across pages
//	@Tags			search
//	@Produce		json
//	@Param			q				query		string		false	"Full-text query"
//	@Param			tag				query		[]string	false	"Tag filter, repeatable"
//	@Param			match			query		string		false	"all to require every tag"
//	@Param			metadata_type	query		string		false	"Metadata type"
//	@Param			start_date		query		string		false	"Updated on or after"
//	@Param			end_date		query		string		false	"Updated on or before"
//	@Param			created_from	query		string		false	"Created on or after"
//	@Param			created_to		query		string		false	"Created on or before"
//	@Param			sort			query		string		false	"updated, created, title, slug or relevance"
//	@Param			order			query		string		false	"asc or desc"
//	@Param			limit			query		int			false	"Max results"
//	@Param			offset			query		int			false	"Results to skip"
//	@Success		200				{object}	SearchResponse
//	@Failure		400				{object}	errResponse
//	@Failure		422				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if !hasCriteria(f) {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' or a filter is required"))
		return
	}
	if f.Limit == 0 {
		f.Limit = index.DefaultSearchLimit
	}
	pages, total, err := h.repo.Find(r.Context(), f)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: toListItems(pages), Total: total})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := h.repo.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: edges})
}

// Reconcile handles POST /api/reconcile.
//
//	@Summary		Re-derive the index from the page files
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	repository.Report
//	@Security		BearerAuth
//	@Router			/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := h.repo.Reconcile(r.Context())
	if err != nil {
		writeError(w, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ListPlugins handles GET /api/plugins.
//
//	@Summary		Registered metadata plugins and their schemas
//	@Tags			plugins
//	@Produce		json
//	@Success		200	{array}	PluginInfo
//	@Security		BearerAuth
//	@Router			/plugins [get]
func (h *Handler) ListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins := h.repo.Registry().List()
	out := make([]PluginInfo, len(plugins))
	for i, p := range plugins {
		out[i] = toPluginInfo(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// writeDetail writes page enriched with the slugs of the pages linking to it.
func (h *Handler) writeDetail(w http.ResponseWriter, r *http.Request, status int, page *models.Page) {
	backlinks, err := h.repo.Backlinks(r.Context(), page.Slug)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, status, toDetail(page, backlinks))
}
