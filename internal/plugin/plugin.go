// Package plugin defines metadata plugins: per metadata type schemas that
// validate and default a page's custom fields, plus optional lifecycle and
// page hooks. Plugins are registered explicitly on a Registry owned by the
// composition root.
package plugin

// Plugin is the capability every plugin provides.
type Plugin interface {
	Name() string
	Version() string
	Description() string
}

// MetadataPlugin owns the custom fields of pages whose metadata_type equals
// MetadataType.
type MetadataPlugin interface {
	Plugin
	MetadataType() string
	Schema() Schema
	// Validate reports whether fields satisfy the plugin and, if not, one
	// message per violation.
	Validate(fields map[string]any) (bool, []string)
	DefaultValues() map[string]any
}

// Loader is implemented by plugins that need to run code on registration.
type Loader interface {
	OnLoad() error
	OnUnload() error
}

// PageHook receives page lifecycle notifications. Errors are reported to the
// caller for logging only; they never undo the page operation.
type PageHook interface {
	OnPageCreate(id int64, fields map[string]any) error
	OnPageUpdate(id int64, fields map[string]any) error
	OnPageDelete(id int64) error
}
