package plugin

import "github.com/starford/notenest/internal/models"

// SchemaPlugin is a MetadataPlugin fully described by its schema.
type SchemaPlugin struct {
	PluginName    string
	PluginVersion string
	Summary       string
	Type          string
	Fields        Schema
}

func (p *SchemaPlugin) Name() string         { return p.PluginName }
func (p *SchemaPlugin) Version() string      { return p.PluginVersion }
func (p *SchemaPlugin) Description() string  { return p.Summary }
func (p *SchemaPlugin) MetadataType() string { return p.Type }
func (p *SchemaPlugin) Schema() Schema       { return p.Fields }

// Validate checks fields against the schema.
func (p *SchemaPlugin) Validate(fields map[string]any) (bool, []string) {
	msgs := ValidateSchema(p.Fields, fields)
	return len(msgs) == 0, msgs
}

// DefaultValues returns the schema defaults.
func (p *SchemaPlugin) DefaultValues() map[string]any {
	return p.Fields.Defaults()
}

// Default is the plugin for plain pages; it declares no custom fields.
func Default() *SchemaPlugin {
	return &SchemaPlugin{
		PluginName:    "default",
		PluginVersion: "1.0.0",
		Summary:       "Plain pages without custom fields",
		Type:          models.DefaultMetadataType,
		Fields:        Schema{},
	}
}

// Recipe describes cooking recipes.
func Recipe() *SchemaPlugin {
	return &SchemaPlugin{
		PluginName:    "recipe",
		PluginVersion: "1.0.0",
		Summary:       "Recipes with ingredients, timing and rating",
		Type:          "recipe",
		Fields: Schema{
			"ingredients": {
				Type:        TypeList,
				Required:    true,
				Default:     []any{},
				Description: "Ingredient list, one string per item",
			},
			"cooking_time": {
				Type:        TypeInt,
				Required:    true,
				Default:     30,
				Min:         Bound(1),
				Description: "Cooking time in minutes",
			},
			"difficulty": {
				Type:        TypeString,
				Required:    true,
				Default:     "medium",
				Enum:        []any{"easy", "medium", "hard"},
				Description: "easy, medium or hard",
			},
			"servings": {
				Type:        TypeInt,
				Required:    true,
				Default:     2,
				Min:         Bound(1),
				Description: "Number of servings",
			},
			"nutrition": {
				Type:        TypeDict,
				Default:     map[string]any{},
				Description: "Nutrition facts such as calories or protein",
			},
			"rating": {
				Type:        TypeFloat,
				Min:         Bound(0),
				Max:         Bound(5),
				Description: "Rating from 0 to 5",
			},
		},
	}
}

// Builtins returns the plugins registered by default.
func Builtins() []Plugin {
	return []Plugin{Default(), Recipe()}
}
