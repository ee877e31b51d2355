package api

import (
	"time"

	"github.com/starford/notenest/internal/models"
	"github.com/starford/notenest/internal/plugin"
)

// CreatePageRequest is the request body for creating a page.
type CreatePageRequest struct {
	Slug         string         `json:"slug" example:"recipes/curry" validate:"required"`
	Title        string         `json:"title" example:"Curry"`
	Body         string         `json:"body" example:"See [[recipes/rice]]"`
	Tags         []string       `json:"tags" example:"dinner,spicy"`
	MetadataType string         `json:"metadata_type" example:"recipe"`
	CustomFields map[string]any `json:"custom_fields"`
}

// UpdatePageRequest is the request body for updating a page. Omitted fields
// are left unchanged; custom_fields is merged.
type UpdatePageRequest struct {
	Title        *string        `json:"title,omitempty"`
	Body         *string        `json:"body,omitempty"`
	Tags         *[]string      `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// PageDetail is the full page response.
type PageDetail struct {
	ID           int64          `json:"id" example:"1" validate:"required"`
	Slug         string         `json:"slug" example:"recipes/curry" validate:"required"`
	Title        string         `json:"title" example:"Curry" validate:"required"`
	Body         string         `json:"body"`
	Tags         []string       `json:"tags" validate:"required"`
	MetadataType string         `json:"metadata_type" example:"recipe" validate:"required"`
	CustomFields map[string]any `json:"custom_fields"`
	Checksum     string         `json:"checksum" example:"abc123..."`
	Backlinks    []string       `json:"backlinks" validate:"required"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PageListItem is a lightweight item in a list response.
type PageListItem struct {
	ID           int64     `json:"id" example:"1"`
	Slug         string    `json:"slug" example:"recipes/curry"`
	Title        string    `json:"title" example:"Curry"`
	Tags         []string  `json:"tags" example:"dinner,spicy"`
	MetadataType string    `json:"metadata_type" example:"recipe"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PageListResponse wraps page listings.
type PageListResponse struct {
	Pages []PageListItem `json:"pages" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// LinksResponse wraps a list of edges.
type LinksResponse struct {
	Links []models.Link `json:"links" validate:"required"`
}

// TagsResponse wraps the tag listing.
type TagsResponse struct {
	Tags []models.Tag `json:"tags" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []PageListItem `json:"results" validate:"required"`
	Total   int            `json:"total" example:"42" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []models.GraphNode `json:"nodes" validate:"required"`
	Links []models.GraphEdge `json:"links" validate:"required"`
}

// PluginInfo describes a registered plugin.
type PluginInfo struct {
	Name         string        `json:"name" example:"recipe" validate:"required"`
	Version      string        `json:"version" example:"1.0.0" validate:"required"`
	Description  string        `json:"description"`
	MetadataType string        `json:"metadata_type,omitempty" example:"recipe"`
	Schema       plugin.Schema `json:"schema,omitempty"`
}

func toDetail(p *models.Page, backlinks []models.Link) PageDetail {
	sources := make([]string, 0, len(backlinks))
	for _, l := range backlinks {
		sources = append(sources, l.SourceSlug)
	}
	return PageDetail{
		ID:           p.ID,
		Slug:         p.Slug,
		Title:        p.Title,
		Body:         p.Body,
		Tags:         nonNilSlice(p.Tags),
		MetadataType: p.MetadataType,
		CustomFields: p.CustomFields,
		Checksum:     p.Checksum,
		Backlinks:    sources,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toListItems(pages []models.Page) []PageListItem {
	items := make([]PageListItem, len(pages))
	for i, p := range pages {
		items[i] = PageListItem{
			ID:           p.ID,
			Slug:         p.Slug,
			Title:        p.Title,
			Tags:         nonNilSlice(p.Tags),
			MetadataType: p.MetadataType,
			UpdatedAt:    p.UpdatedAt,
		}
	}
	return items
}

func toPluginInfo(p plugin.Plugin) PluginInfo {
	info := PluginInfo{Name: p.Name(), Version: p.Version(), Description: p.Description()}
	if mp, ok := p.(plugin.MetadataPlugin); ok {
		info.MetadataType = mp.MetadataType()
		info.Schema = mp.Schema()
	}
	return info
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
