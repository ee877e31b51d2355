package plugin

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Field types understood by Schema.
const (
	TypeString = "str"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeList   = "list"
	TypeDict   = "dict"
)

// Schema maps a custom field name to its spec.
type Schema map[string]FieldSpec

// FieldSpec describes one custom field.
type FieldSpec struct {
	Type        string   `json:"type" yaml:"type"`
	Required    bool     `json:"required" yaml:"required"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any    `json:"enum,omitempty" yaml:"enum,omitempty"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Bound is a helper for FieldSpec.Min and FieldSpec.Max.
func Bound(v float64) *float64 { return &v }

// ValidateSchema checks fields against s and returns one message per failing
// field, sorted by field name. Fields unknown to s are allowed.
func ValidateSchema(s Schema, fields map[string]any) []string {
	if fields == nil {
		fields = map[string]any{}
	}
	keys := make([]*validation.KeyRules, 0, len(s))
	for _, name := range s.names() {
		spec := s[name]
		var rules []validation.Rule
		if spec.Required {
			rules = append(rules, validation.NotNil)
		}
		rules = append(rules, validation.By(typeRule(spec.Type)))
		if len(spec.Enum) > 0 {
			rules = append(rules, validation.By(enumRule(spec.Enum)))
		}
		if spec.Min != nil || spec.Max != nil {
			rules = append(rules, validation.By(rangeRule(spec.Min, spec.Max)))
		}
		key := validation.Key(name, rules...)
		if !spec.Required {
			key = key.Optional()
		}
		keys = append(keys, key)
	}

	err := validation.Validate(fields, validation.Map(keys...).AllowExtraKeys())
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []string{err.Error()}
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fmt.Sprintf("%s: %s", name, errs[name].Error()))
	}
	return msgs
}

// Defaults returns a fresh copy of every non-nil default in s.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any)
	for name, spec := range s {
		if spec.Default == nil {
			continue
		}
		out[name] = copyValue(spec.Default)
	}
	return out
}

func (s Schema) names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typeRule(typ string) validation.RuleFunc {
	return func(value any) error {
		if value == nil || typ == "" {
			return nil
		}
		if !hasType(value, typ) {
			return fmt.Errorf("should be %s, got %T", typ, value)
		}
		return nil
	}
}

func enumRule(enum []any) validation.RuleFunc {
	return func(value any) error {
		if value == nil {
			return nil
		}
		for _, e := range enum {
			if reflect.DeepEqual(e, value) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", enum)
	}
}

func rangeRule(lo, hi *float64) validation.RuleFunc {
	return func(value any) error {
		n, ok := toFloat(value)
		if !ok {
			return nil
		}
		if lo != nil && n < *lo {
			return fmt.Errorf("must be no less than %v", *lo)
		}
		if hi != nil && n > *hi {
			return fmt.Errorf("must be no greater than %v", *hi)
		}
		return nil
	}
}

// hasType accepts the Go shapes produced by both the YAML and the JSON
// decoders; JSON numbers arrive as float64.
func hasType(value any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeInt:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case TypeFloat:
		_, ok := toFloat(value)
		return ok
	case TypeList:
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case TypeDict:
		return reflect.TypeOf(value).Kind() == reflect.Map
	}
	return true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	}
	return v
}
