package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notenest/internal/index"
)

const fieldParamPrefix = "field."

// parsePaging reads limit and offset. Absent values are zero.
func parsePaging(q url.Values) (limit, offset int, err error) {
	if limit, err = intParam(q, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(q, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// parseFilter builds a search filter from query parameters:
//
//	q              full-text query
//	tag            repeatable or comma separated
//	match          "all" requires every tag, otherwise any
//	metadata_type  exact metadata type
//	field.<name>   custom field match, repeatable per name
//	start_date     lower bound on updated_at (RFC 3339 or YYYY-MM-DD)
//	end_date       upper bound on updated_at, a bare date covers the whole day
//	created_from   lower bound on created_at
//	created_to     upper bound on created_at
//	sort           updated, created, title, slug or relevance
//	order          asc or desc
//	limit, offset  paging
func parseFilter(q url.Values) (index.Filter, error) {
	f := index.Filter{
		Query:        strings.TrimSpace(q.Get("q")),
		MetadataType: q.Get("metadata_type"),
		MatchAllTags: q.Get("match") == "all",
		Sort:         index.SortKey(q.Get("sort")),
	}
	for _, raw := range q["tag"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}
	for key, vals := range q {
		name, ok := strings.CutPrefix(key, fieldParamPrefix)
		if !ok || name == "" || len(vals) == 0 {
			continue
		}
		if f.Fields == nil {
			f.Fields = map[string]any{}
		}
		f.Fields[name] = vals[0]
	}

	switch q.Get("order") {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, errors.New("order must be asc or desc")
	}

	var err error
	if f.UpdatedFrom, err = dateParam(q, "start_date", false); err != nil {
		return f, err
	}
	if f.UpdatedTo, err = dateParam(q, "end_date", true); err != nil {
		return f, err
	}
	if f.CreatedFrom, err = dateParam(q, "created_from", false); err != nil {
		return f, err
	}
	if f.CreatedTo, err = dateParam(q, "created_to", true); err != nil {
		return f, err
	}
	if f.Limit, f.Offset, err = parsePaging(q); err != nil {
		return f, err
	}
	return f, nil
}

// hasCriteria reports whether f narrows the page set at all.
func hasCriteria(f index.Filter) bool {
	return f.Query != "" || len(f.Tags) > 0 || f.MetadataType != "" || len(f.Fields) > 0 ||
		!f.CreatedFrom.IsZero() || !f.CreatedTo.IsZero() || !f.UpdatedFrom.IsZero() || !f.UpdatedTo.IsZero()
}

// dateParam accepts RFC 3339 or a bare date. A bare upper bound extends to
// the last instant of that day.
func dateParam(q url.Values, name string, upper bool) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", name)
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
