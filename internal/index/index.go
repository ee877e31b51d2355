package index

import "github.com/starford/notenest/internal/models"

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 20

// PageIndex defines the derived index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PageIndex interface {
	WritePage(p *models.Page, links []string) (int64, error)
	UpsertPage(p *models.Page) (int64, error)
	GetByID(id int64) (*models.Page, error)
	GetBySlug(slug string) (*models.Page, error)
	ListAll() ([]models.Page, error)
	DeletePage(id int64) (bool, error)
	SetPageTags(id int64, names []string) error
	SetPageLinks(sourceID int64, targets []string) error
	IndexForSearch(id int64, title, body string, tags []string) error
	PageTags(id int64) ([]string, error)
	OutgoingLinks(id int64) ([]models.Link, error)
	Backlinks(slug string) ([]models.Link, error)
	DanglingLinks() ([]models.Link, error)
	AllTags() ([]models.Tag, error)
	PagesByTag(name string) ([]models.Page, error)
	Search(query string, limit int) ([]models.Page, error)
	Find(f Filter) ([]models.Page, int, error)
	Graph() ([]models.GraphNode, []models.GraphEdge, error)
	Fingerprints() (map[string]Fingerprint, error)
	Close() error
}

// Verify *DB satisfies PageIndex at compile time.
var _ PageIndex = (*DB)(nil)
