// Package models defines the domain types for notenest.
package models

import "time"

// DefaultMetadataType is the discriminator used when a page names none.
const DefaultMetadataType = "default"

// LinkKindWiki marks edges extracted from [[target]] references.
const LinkKindWiki = "wiki"

// Page is one document. ID is assigned by the index; every other field is owned
// by the page file.
type Page struct {
	ID           int64          `json:"id"`
	Slug         string         `json:"slug"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Tags         []string       `json:"tags"`
	MetadataType string         `json:"metadata_type"`
	CustomFields map[string]any `json:"custom_fields"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// Location is the page file path relative to the pages directory.
	Location string `json:"location"`
	// Checksum is the SHA-256 of the file bytes last written or read.
	Checksum string `json:"-"`
}

// Tag is a tag name with the number of live pages carrying it.
type Tag struct {
	Name           string `json:"name"`
	ReferenceCount int    `json:"reference_count"`
}

// Link is a directed edge from a page to a slug that may not exist.
type Link struct {
	ID           int64  `json:"id"`
	SourcePageID int64  `json:"source_page_id"`
	SourceSlug   string `json:"source_slug"`
	TargetSlug   string `json:"target_slug"`
	Kind         string `json:"kind"`
}

// GraphNode is a page in the link graph.
type GraphNode struct {
	Slug  string `json:"slug"`
	Title string `json:"title,omitempty"`
}

// GraphEdge is an edge in the link graph. Dangling is true when Target has no
// live page.
type GraphEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Dangling bool   `json:"dangling"`
}
