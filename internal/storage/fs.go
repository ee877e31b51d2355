package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/notenest/internal/apperr"
	"github.com/starford/notenest/internal/checksum"
	"github.com/starford/notenest/internal/frontmatter"
	"github.com/starford/notenest/internal/models"
)

const (
	pageExt   = ".md"
	filePerms = 0o644
	dirPerms  = 0o755
)

// Field names of the page block.
const (
	fieldTitle        = "title"
	fieldTags         = "tags"
	fieldCreated      = "created"
	fieldUpdated      = "updated"
	fieldMetadataType = "metadata_type"
	fieldCustom       = "custom_fields"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the pages directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute pages directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative location against the root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("storage: empty location: %w", apperr.ErrInvalid)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalid)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes pages root: %s: %w", rel, apperr.ErrInvalid)
	}
	return abs, nil
}

// LocationFor maps a slug to "<slug>.md". Slugs are clean slash separated
// relative paths whose elements do not start with a dot.
func (f *FS) LocationFor(slug string) (string, error) {
	if err := ValidateSlug(slug); err != nil {
		return "", err
	}
	return slug + pageExt, nil
}

// ValidateSlug reports whether slug can name a page file.
func ValidateSlug(slug string) error {
	switch {
	case strings.TrimSpace(slug) == "":
		return fmt.Errorf("storage: slug is empty: %w", apperr.ErrInvalid)
	case strings.ContainsAny(slug, "\\\x00"), strings.HasPrefix(slug, "/"), path.Clean(slug) != slug:
		return fmt.Errorf("storage: slug %q is not a clean relative path: %w", slug, apperr.ErrInvalid)
	}
	for _, elem := range strings.Split(slug, "/") {
		if strings.HasPrefix(elem, ".") {
			return fmt.Errorf("storage: slug %q has a hidden element: %w", slug, apperr.ErrInvalid)
		}
	}
	return nil
}

// SlugFor derives the slug from a location.
func SlugFor(location string) string {
	return strings.TrimSuffix(filepath.ToSlash(location), pageExt)
}

// Save serializes p and atomically replaces the file at its location.
func (f *FS) Save(p *models.Page) (string, error) {
	loc := p.Location
	if loc == "" {
		var err error
		if loc, err = f.LocationFor(p.Slug); err != nil {
			return "", err
		}
	}
	abs, err := f.safePath(loc)
	if err != nil {
		return "", err
	}

	text, err := frontmatter.Encode(pageFields(p), p.Body)
	if err != nil {
		return "", fmt.Errorf("storage: save %s: %w", loc, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), dirPerms); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := atomic.WriteFile(abs, strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", loc, err)
	}
	// atomic.WriteFile leaves new files with temp-file permissions.
	if err := os.Chmod(abs, filePerms); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", loc, err)
	}

	p.Location = loc
	p.Checksum = checksum.Sum([]byte(text))
	return loc, nil
}

// Load reads and decodes the page at location.
func (f *FS) Load(location string) (*models.Page, error) {
	abs, err := f.safePath(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: load %s: %w", location, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: load %s: %w", location, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", location, err)
	}

	p := Parse(string(data), info.ModTime())
	p.Slug = SlugFor(location)
	p.Location = filepath.ToSlash(location)
	p.Checksum = checksum.Sum(data)
	if p.Title == "" {
		p.Title = path.Base(p.Slug)
	}
	return p, nil
}

// Parse decodes page file text without touching the disk. Timestamps missing
// from the block default to modTime; the title falls back to the first H1.
func Parse(text string, modTime time.Time) *models.Page {
	fields, body := frontmatter.Decode(text)
	p := pageFromFields(fields, body, modTime)
	if p.Title == "" {
		p.Title = headingTitle(body)
	}
	return p
}

// Delete removes a page file. A missing file is not an error.
func (f *FS) Delete(location string) (bool, error) {
	abs, err := f.safePath(location)
	if err != nil {
		return false, err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: delete %s: %w", location, err)
	}
	return true, nil
}

// Exists reports whether a regular file is present at location.
func (f *FS) Exists(location string) bool {
	abs, err := f.safePath(location)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// Enumerate walks the root and returns every .md location, skipping hidden
// files and directories.
func (f *FS) Enumerate() ([]string, error) {
	var out []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != f.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), pageExt) {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: enumerate: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func pageFields(p *models.Page) map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	mt := p.MetadataType
	if mt == "" {
		mt = models.DefaultMetadataType
	}
	fields := map[string]any{
		fieldTitle:        p.Title,
		fieldTags:         tags,
		fieldCreated:      p.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdated:      p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldMetadataType: mt,
	}
	if len(p.CustomFields) > 0 {
		fields[fieldCustom] = p.CustomFields
	}
	return fields
}

// pageFromFields maps a decoded block onto a Page. Unknown top-level keys are
// kept as custom fields so that rewriting an externally edited file loses
// nothing.
func pageFromFields(fields map[string]any, body string, modTime time.Time) *models.Page {
	p := &models.Page{
		Body:         body,
		Tags:         []string{},
		MetadataType: models.DefaultMetadataType,
		CustomFields: map[string]any{},
		CreatedAt:    modTime,
		UpdatedAt:    modTime,
	}
	for k, v := range fields {
		switch k {
		case fieldTitle:
			if s, ok := v.(string); ok {
				p.Title = s
			}
		case fieldTags:
			p.Tags = stringList(v)
		case fieldCreated:
			if t, ok := parseTime(v); ok {
				p.CreatedAt = t
			}
		case fieldUpdated:
			if t, ok := parseTime(v); ok {
				p.UpdatedAt = t
			}
		case fieldMetadataType:
			if s, ok := v.(string); ok && s != "" {
				p.MetadataType = s
			}
		case fieldCustom:
			if m, ok := v.(map[string]any); ok {
				for ck, cv := range m {
					p.CustomFields[ck] = cv
				}
			}
		default:
			if _, dup := p.CustomFields[k]; !dup {
				p.CustomFields[k] = v
			}
		}
	}
	return p
}

func stringList(v any) []string {
	out := []string{}
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			add(s)
		}
	}
	return out
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// headingTitle returns the first H1 heading of body, or "".
func headingTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
