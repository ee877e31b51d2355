// Package storage owns the on-disk representation of pages: one Markdown file
// per page with a YAML field block followed by the body.
package storage

import "github.com/starford/notenest/internal/models"

// Provider is the interface for page file operations. Locations are slash
// separated paths relative to the pages directory.
type Provider interface {
	// LocationFor derives the location of a page from its slug.
	LocationFor(slug string) (string, error)
	// Save writes the page to its location (p.Location, or derived from p.Slug)
	// through a temp file and atomic rename. It sets p.Location and p.Checksum.
	Save(p *models.Page) (string, error)
	// Load reads the page at location. The returned page has no ID.
	Load(location string) (*models.Page, error)
	// Delete removes the file at location; it reports whether a file was removed.
	Delete(location string) (bool, error)
	// Exists reports whether a file is present at location.
	Exists(location string) bool
	// Enumerate lists every page location in lexical order.
	Enumerate() ([]string, error)
}
