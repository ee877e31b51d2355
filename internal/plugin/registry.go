package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/starford/notenest/internal/apperr"
)

// Registry holds the plugins known to one process.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	byType  map[string]MetadataPlugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		byType:  make(map[string]MetadataPlugin),
	}
}

// NewDefaultRegistry returns a registry holding the built-in plugins.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, p := range Builtins() {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p. Names and metadata types must be unique. A Loader's OnLoad
// runs before p becomes visible; if it fails p is not registered.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin: empty name: %w", apperr.ErrInvalid)
	}
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("plugin: %q already registered: %w", name, apperr.ErrConflict)
	}
	mp, isMeta := p.(MetadataPlugin)
	if isMeta {
		if owner, ok := r.byType[mp.MetadataType()]; ok {
			return fmt.Errorf("plugin: metadata type %q already registered by %q: %w",
				mp.MetadataType(), owner.Name(), apperr.ErrConflict)
		}
	}
	if l, ok := p.(Loader); ok {
		if err := l.OnLoad(); err != nil {
			return fmt.Errorf("plugin: load %q: %w", name, err)
		}
	}

	r.plugins[name] = p
	if isMeta {
		r.byType[mp.MetadataType()] = mp
	}
	return nil
}

// Unregister removes the plugin called name, running its OnUnload. It reports
// whether a plugin was removed.
func (r *Registry) Unregister(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[name]
	if !ok {
		return false, nil
	}
	delete(r.plugins, name)
	if mp, isMeta := p.(MetadataPlugin); isMeta {
		if owner, ok := r.byType[mp.MetadataType()]; ok && owner.Name() == name {
			delete(r.byType, mp.MetadataType())
		}
	}
	if l, ok := p.(Loader); ok {
		if err := l.OnUnload(); err != nil {
			return true, fmt.Errorf("plugin: unload %q: %w", name, err)
		}
	}
	return true, nil
}

// Get returns the plugin called name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// ForType returns the metadata plugin owning metadataType.
func (r *Registry) ForType(metadataType string) (MetadataPlugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byType[metadataType]
	return p, ok
}

// List returns all plugins sorted by name.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Prepare fills defaults for keys missing from fields and validates the
// result against the plugin owning metadataType. Types without a plugin pass
// through unchanged. The returned map is always a new map; on failure the
// error is an *apperr.ValidationError.
func (r *Registry) Prepare(metadataType string, fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	mp, ok := r.ForType(metadataType)
	if !ok {
		return out, nil
	}
	for k, v := range mp.DefaultValues() {
		if _, set := out[k]; !set {
			out[k] = v
		}
	}
	if valid, msgs := mp.Validate(out); !valid {
		if len(msgs) == 0 {
			msgs = []string{fmt.Sprintf("custom fields rejected by %q", mp.Name())}
		}
		return nil, apperr.Invalid(msgs...)
	}
	return out, nil
}

func (r *Registry) hooks() []PageHook {
	var hooks []PageHook
	for _, p := range r.List() {
		if h, ok := p.(PageHook); ok {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

// PageCreated notifies every PageHook. All hooks run; their errors are joined.
func (r *Registry) PageCreated(id int64, fields map[string]any) error {
	var errs []error
	for _, h := range r.hooks() {
		if err := h.OnPageCreate(id, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PageUpdated notifies every PageHook.
func (r *Registry) PageUpdated(id int64, fields map[string]any) error {
	var errs []error
	for _, h := range r.hooks() {
		if err := h.OnPageUpdate(id, fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PageDeleted notifies every PageHook.
func (r *Registry) PageDeleted(id int64) error {
	var errs []error
	for _, h := range r.hooks() {
		if err := h.OnPageDelete(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
