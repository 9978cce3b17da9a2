package aitools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

// PropertyType represents a JSON Schema type
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeNumber  PropertyType = "number"
	TypeInteger PropertyType = "integer"
	TypeBoolean PropertyType = "boolean"
	TypeArray   PropertyType = "array"
	TypeObject  PropertyType = "object"
)

// Property defines a single property in a JSON Schema
type Property struct {
	Type        PropertyType `json:"type"`
	Description string       `json:"description,omitempty"`
	Items       *Property    `json:"items,omitempty"` // For array types
	Enum        []string     `json:"enum,omitempty"`
	Format      string       `json:"format,omitempty"`
	Default     any          `json:"default,omitempty"`
}

// PropertyMap is a map of property names to their definitions
type PropertyMap map[string]Property

// Schema represents a JSON Schema for tool parameters
type Schema struct {
	Type       PropertyType `json:"type"`
	Properties PropertyMap  `json:"properties"`
	Required   []string     `json:"required,omitempty"`
}

// String returns the JSON representation of the schema
func (s Schema) String() string {
	b, _ := json.Marshal(s)
	return string(b)
}

// ApplyDefaults returns a copy of args with declared defaults filled in for
// absent optional properties. The input map is not modified.
func (s Schema) ApplyDefaults(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for name, prop := range s.Properties {
		if prop.Default == nil {
			continue
		}
		if v, ok := out[name]; !ok || v == nil {
			out[name] = prop.Default
		}
	}
	return out
}

// Validate checks args against the schema. Required properties must be present
// and non-null, and every declared property that is present must carry a value of
// the declared type. Undeclared properties are ignored.
func (s Schema) Validate(args map[string]any) error {
	for _, name := range s.Required {
		if v, ok := args[name]; !ok || v == nil {
			return Errorf(KindInvalidArgument, "missing required argument %q", name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := s.Properties[name]
		v := args[name]
		if !ok || v == nil {
			continue
		}
		if err := prop.check(v); err != nil {
			return Errorf(KindInvalidArgument, "argument %q: %v", name, err)
		}
	}
	return nil
}

func (p Property) check(v any) error {
	switch p.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, str) {
			return fmt.Errorf("must be one of %v, got %q", p.Enum, str)
		}
	case TypeNumber:
		if _, ok := AsFloat(v); !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
	case TypeInteger:
		f, ok := AsFloat(v)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("expected integer, got %v", v)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case TypeArray:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
		if p.Items != nil {
			for i, item := range items {
				if err := p.Items.check(item); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", v)
		}
	}
	return nil
}

// AsFloat converts the numeric representations produced by JSON decoding and
// by Go callers into a float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
