package repository

import (
	"log/slog"
	"time"

	"github.com/starford/notenest/internal/plugin"
)

// Event kinds passed to the EventFunc.
const (
	EventCreated = "page.created"
	EventUpdated = "page.updated"
	EventDeleted = "page.deleted"
)

// EventFunc is called after every successful page mutation, including those
// made by Reconcile.
type EventFunc func(kind, slug string)

// Option configures a Repository.
type Option func(*Repository)

// WithRegistry sets the plugin registry used for custom field validation and
// page hooks.
func WithRegistry(reg *plugin.Registry) Option {
	return func(r *Repository) {
		r.registry = reg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithEventCallback registers fn to receive page change events.
func WithEventCallback(fn EventFunc) Option {
	return func(r *Repository) {
		r.onEvent = fn
	}
}

// WithPrune makes Reconcile delete index records whose files are gone.
func WithPrune(prune bool) Option {
	return func(r *Repository) {
		r.prune = prune
	}
}
