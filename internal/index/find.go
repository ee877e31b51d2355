package index

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/models"
)

// SortKey names the order of Find results.
type SortKey string

const (
	SortUpdated   SortKey = "updated"
	SortCreated   SortKey = "created"
	SortTitle     SortKey = "title"
	SortSlug      SortKey = "slug"
	SortRelevance SortKey = "relevance"
)

// Filter selects pages for Find. Zero fields do not constrain the result.
//
// Fields matches custom field values: a string matches a string value
// case-insensitively as a substring, a list value matches when any element
// equals the wanted value, anything else compares by its printed form.
// Time bounds are inclusive.
type Filter struct {
	Query        string
	Tags         []string
	MatchAllTags bool
	MetadataType string
	Fields       map[string]any

	CreatedFrom time.Time
	CreatedTo   time.Time
	UpdatedFrom time.Time
	UpdatedTo   time.Time

	// Sort defaults to SortRelevance with a Query and SortUpdated without.
	// Results are descending unless Ascending is set; relevance ignores it.
	Sort      SortKey
	Ascending bool

	// Limit <= 0 returns every match after Offset.
	Limit  int
	Offset int
}

// Validate checks the sort key and paging bounds.
func (f Filter) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Sort, validation.In(SortUpdated, SortCreated, SortTitle, SortSlug, SortRelevance)),
		validation.Field(&f.Limit, validation.Min(0)),
		validation.Field(&f.Offset, validation.Min(0)),
	)
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return apperr.Invalid(err.Error())
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %v", strings.ToLower(k), errs[k]))
	}
	return apperr.Invalid(msgs...)
}

func (f Filter) sortKey() SortKey {
	switch {
	case f.Sort != "":
		return f.Sort
	case strings.TrimSpace(f.Query) != "":
		return SortRelevance
	default:
		return SortUpdated
	}
}

// Find returns one page of the pages matching f together with the number of
// matches before paging. Ties are broken by id.
func (db *DB) Find(f Filter) ([]models.Page, int, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}

	var (
		where []string
		args  []any
		rank  map[int64]int
	)
	if strings.TrimSpace(f.Query) != "" {
		ids, err := db.rankedIDs(f.Query)
		if err != nil {
			return nil, 0, err
		}
		if len(ids) == 0 {
			return []models.Page{}, 0, nil
		}
		rank = make(map[int64]int, len(ids))
		for i, id := range ids {
			rank[id] = i
		}
	}

	if tags := filterTags(f.Tags); len(tags) > 0 {
		sub := `SELECT pt.page_id FROM page_tags pt JOIN tags t ON t.id = pt.tag_id WHERE t.name IN (` + placeholders(len(tags)) + `)`
		for _, t := range tags {
			args = append(args, t)
		}
		if f.MatchAllTags {
			sub += ` GROUP BY pt.page_id HAVING COUNT(*) = ?`
			args = append(args, len(tags))
		}
		where = append(where, `p.id IN (`+sub+`)`)
	}
	if f.MetadataType != "" {
		where = append(where, `p.metadata_type = ?`)
		args = append(args, f.MetadataType)
	}
	where, args = timeRange(where, args, "p.created_at", f.CreatedFrom, f.CreatedTo)
	where, args = timeRange(where, args, "p.updated_at", f.UpdatedFrom, f.UpdatedTo)

	key := f.sortKey()
	if key == SortRelevance && rank == nil {
		key = SortUpdated
	}

	q := `SELECT ` + pageColumns + ` FROM pages p`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY ` + orderClause(key, f.Ascending)

	pages, err := db.scanPages(q, args...)
	if err != nil {
		return nil, 0, err
	}

	matched := pages[:0]
	for _, p := range pages {
		if rank != nil {
			if _, ok := rank[p.ID]; !ok {
				continue
			}
		}
		if !fieldsMatch(p.CustomFields, f.Fields) {
			continue
		}
		matched = append(matched, p)
	}
	if key == SortRelevance {
		sort.SliceStable(matched, func(i, j int) bool {
			return rank[matched[i].ID] < rank[matched[j].ID]
		})
	}

	total := len(matched)
	out := paginate(matched, f.Offset, f.Limit)
	if err := db.attachTags(out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func orderClause(key SortKey, asc bool) string {
	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	switch key {
	case SortCreated:
		return "p.created_at " + dir + ", p.id ASC"
	case SortTitle:
		return "p.title COLLATE NOCASE " + dir + ", p.id ASC"
	case SortSlug:
		return "p.slug " + dir + ", p.id ASC"
	default:
		return "p.updated_at " + dir + ", p.id ASC"
	}
}

func timeRange(where []string, args []any, col string, from, to time.Time) ([]string, []any) {
	if !from.IsZero() {
		where = append(where, col+` >= ?`)
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		where = append(where, col+` <= ?`)
		args = append(args, to.UnixNano())
	}
	return where, args
}

func filterTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func paginate(pages []models.Page, offset, limit int) []models.Page {
	if offset >= len(pages) {
		return []models.Page{}
	}
	pages = pages[offset:]
	if limit > 0 && limit < len(pages) {
		pages = pages[:limit]
	}
	return pages
}

func fieldsMatch(have, want map[string]any) bool {
	for name, w := range want {
		v, ok := have[name]
		if !ok || !valueMatches(v, w) {
			return false
		}
	}
	return true
}

func valueMatches(have, want any) bool {
	switch h := have.(type) {
	case string:
		if w, ok := want.(string); ok {
			return strings.Contains(strings.ToLower(h), strings.ToLower(w))
		}
	case []any:
		for _, item := range h {
			if fmt.Sprint(item) == fmt.Sprint(want) {
				return true
			}
		}
		return false
	}
	return fmt.Sprint(have) == fmt.Sprint(want)
}

// queryIDs runs a single column id query.
func (db *DB) queryIDs(query string, args ...any) ([]int64, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("index: scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
