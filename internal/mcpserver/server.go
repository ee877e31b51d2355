// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notenest tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/index"
	"github.com/starford/notenest/internal/repository"
	"github.com/starford/notenest/internal/storage"
)

const formatURI = "notenest://page-format"

// Server wraps the MCP server with notenest tools.
type Server struct {
	mcp  *server.MCPServer
	repo *repository.Repository
}

// New creates a new MCP server with all notenest tools registered.
func New(repo *repository.Repository) *Server {
	s := &Server{repo: repo}

	s.mcp = server.NewMCPServer(
		"notenest",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Search pages by text, tags, metadata type and custom fields. "+
			"At least one of query, tags, metadata_type or fields is required."),
		mcp.WithString("query", mcp.Description("Full-text query over titles, bodies and tags")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags to filter by")),
		mcp.WithBoolean("match_all_tags", mcp.Description("Require every tag instead of any")),
		mcp.WithString("metadata_type", mcp.Description("Only pages of this metadata type")),
		mcp.WithObject("fields", mcp.Description("Custom field values to match, e.g. {\"cuisine\": \"thai\"}")),
		mcp.WithString("sort", mcp.Enum("relevance", "updated", "created", "title", "slug"), mcp.Description("Result order")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Results to skip")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read a page with its fields and Markdown body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Page slug (e.g. recipes/curry)")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new page under the given slug. "+
			"Content MUST follow the page format (YAML field block with title, tags, "+
			"metadata_type and custom fields, then a Markdown body with [[wikilinks]]). "+
			"Read the contract first via the get_page_contract tool or the "+formatURI+" resource."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug for the new page (slash separated, no .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Page text following the format contract")),
	), s.createPage)

	s.mcp.AddTool(mcp.NewTool("get_page_contract",
		mcp.WithDescription("Returns the canonical page format contract. "+
			"Call this before creating pages to ensure correct structure."),
	), s.getPageContract)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all page slugs, newest first, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of slugs, all when omitted")),
		mcp.WithNumber("offset", mcp.Description("Slugs to skip")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all pages that link to the specified slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_dangling_links",
		mcp.WithDescription("List links whose target page does not exist yet."),
	), s.getDanglingLinks)

	s.mcp.AddTool(mcp.NewTool("reconcile",
		mcp.WithDescription("Re-derive the index from the page files and report what changed."),
	), s.reconcile)

	// Resource: page format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Page Format Contract",
			mcp.WithResourceDescription("Canonical Markdown page format that all pages must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := index.Filter{
		Query:        strings.TrimSpace(req.GetString("query", "")),
		Tags:         req.GetStringSlice("tags", nil),
		MatchAllTags: req.GetBool("match_all_tags", false),
		MetadataType: req.GetString("metadata_type", ""),
		Sort:         index.SortKey(req.GetString("sort", "")),
		Limit:        req.GetInt("limit", index.DefaultSearchLimit),
		Offset:       req.GetInt("offset", 0),
	}
	if fields, ok := req.GetArguments()["fields"].(map[string]any); ok && len(fields) > 0 {
		f.Fields = fields
	}
	if f.Query == "" && len(f.Tags) == 0 && f.MetadataType == "" && len(f.Fields) == 0 {
		return mcp.NewToolResultError("one of query, tags, metadata_type or fields is required"), nil
	}
	pages, _, err := s.repo.Find(ctx, f)
	if err != nil {
		return toolError(err), nil
	}
	slugs := make([]string, len(pages))
	for i, p := range pages {
		slugs[i] = p.Slug
	}
	return jsonResult(slugs)
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.repo.Get(ctx, slug)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(page)
}

func (s *Server) createPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	parsed := storage.Parse(content, time.Time{})
	page, err := s.repo.Create(ctx, repository.CreateInput{
		Slug:         slug,
		Title:        parsed.Title,
		Body:         parsed.Body,
		Tags:         parsed.Tags,
		MetadataType: parsed.MetadataType,
		CustomFields: parsed.CustomFields,
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", page.Slug)), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := index.Filter{
		Limit:  req.GetInt("limit", 0),
		Offset: req.GetInt("offset", 0),
	}
	if tag := req.GetString("tag", ""); tag != "" {
		f.Tags = []string{tag}
	}
	pages, _, err := s.repo.Find(ctx, f)
	if err != nil {
		return toolError(err), nil
	}

	slugs := make([]string, len(pages))
	for i, p := range pages {
		slugs[i] = p.Slug
	}
	return mcp.NewToolResultText(strings.Join(slugs, "\n")), nil
}

func (s *Server) getPageContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readPageFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links, err := s.repo.Backlinks(ctx, slug)
	if err != nil {
		return toolError(err), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	sources := make([]string, len(links))
	for i, l := range links {
		sources[i] = l.SourceSlug
	}
	return mcp.NewToolResultText(strings.Join(sources, "\n")), nil
}

func (s *Server) getDanglingLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.repo.DanglingLinks(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no dangling links"), nil
	}
	lines := make([]string, len(links))
	for i, l := range links {
		lines[i] = l.SourceSlug + " -> " + l.TargetSlug
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) reconcile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.repo.Reconcile(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rep)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError reports err to the model. Validation failures list every message.
func toolError(err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError("invalid custom fields:\n" + strings.Join(ve.Messages, "\n"))
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
