// Package profile is the schema/spec validation layer of §3/§9 ("Schema /
// Spec recursion") and the Profile type registry. Schema is grounded
// directly on Senlin's common/schema.py: a tagged tree of Leaf/List/Map
// nodes walked in lockstep with a data map, with per-key required/default/
// updatable/constraints and min_version/max_version gates.
package profile

import (
	"fmt"
	"sort"

	"github.com/cuemby/fleetd/pkg/apierror"
)

// Kind is the schema leaf/container tag (schema.py's TYPE values).
type Kind string

const (
	KindInteger Kind = "Integer"
	KindString  Kind = "String"
	KindNumber  Kind = "Number"
	KindBoolean Kind = "Boolean"
	KindMap     Kind = "Map"
	KindList    Kind = "List"
)

// Constraint validates a single resolved value, e.g. AllowedValues or a
// numeric range. Mirrors schema.py's constraints.Constraint subclasses.
type Constraint interface {
	Validate(value any) error
}

// AllowedValues is the schema.py `constraints.AllowedValues` constraint.
type AllowedValues struct{ Values []any }

func (c AllowedValues) Validate(value any) error {
	for _, v := range c.Values {
		if v == value {
			return nil
		}
	}
	return fmt.Errorf("value %v is not one of %v", value, c.Values)
}

// Range is a numeric min/max constraint.
type Range struct{ Min, Max *float64 }

func (c Range) Validate(value any) error {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("value %v is not numeric", value)
	}
	if c.Min != nil && f < *c.Min {
		return fmt.Errorf("value %v is below minimum %v", value, *c.Min)
	}
	if c.Max != nil && f > *c.Max {
		return fmt.Errorf("value %v is above maximum %v", value, *c.Max)
	}
	return nil
}

// Schema is a single node in the recursive tree of §3/§9: a typed leaf
// (Integer/String/Number/Boolean), an ordered List of one element schema
// (schema.py's AnyIndexDict — every element validates against the same
// child schema regardless of index), or a keyed Map of named child
// schemas.
type Schema struct {
	Kind        Kind
	Description string
	Default     any
	Required    bool
	Updatable   bool
	Constraints []Constraint
	MinVersion  string
	MaxVersion  string

	// Element is the List element schema (only set when Kind == KindList).
	Element *Schema
	// Properties is the Map's named children (only set when Kind == KindMap).
	Properties map[string]*Schema
}

func (s *Schema) HasDefault() bool { return s.Default != nil }

// Resolve coerces a raw value into its canonical Go representation,
// recursing into Map/List children. Mirrors schema.py's `resolve`.
func (s *Schema) Resolve(value any) (any, error) {
	switch s.Kind {
	case KindInteger:
		n, ok := toInt(value)
		if !ok {
			return nil, apierror.Validation(fmt.Sprintf("%q cannot be converted into an integer", value))
		}
		return n, nil
	case KindNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, apierror.Validation(fmt.Sprintf("%q cannot be converted into a number", value))
		}
		return f, nil
	case KindString:
		return fmt.Sprintf("%v", value), nil
	case KindBoolean:
		b, ok := toBool(value)
		if !ok {
			return nil, apierror.Validation(fmt.Sprintf("%q is not a valid boolean", value))
		}
		return b, nil
	case KindMap:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, apierror.Validation(fmt.Sprintf("%q is not a Map", value))
		}
		out := make(map[string]any, len(s.Properties))
		for key, child := range s.Properties {
			raw, present := m[key]
			resolved, err := resolveOrDefault(child, key, raw, present)
			if err != nil {
				return nil, err
			}
			if resolved != nil {
				out[key] = resolved
			}
		}
		return out, nil
	case KindList:
		list, ok := value.([]any)
		if !ok {
			return nil, apierror.Validation(fmt.Sprintf("%q is not a List", value))
		}
		out := make([]any, 0, len(list))
		for _, item := range list {
			resolved, err := s.Element.Resolve(item)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
		return out, nil
	}
	return nil, apierror.Validation(fmt.Sprintf("unknown schema kind %q", s.Kind))
}

func resolveOrDefault(child *Schema, key string, raw any, present bool) (any, error) {
	if present {
		return child.Resolve(raw)
	}
	if child.HasDefault() {
		return child.Resolve(child.Default)
	}
	if child.Required {
		return nil, apierror.Validation(fmt.Sprintf("required spec item %q not assigned", key))
	}
	return nil, nil
}

// Validate walks value against the schema, applying required/default and
// every constraint, and (when version is non-empty) the min/max_version
// gate (§3 "per-key ... min_version/max_version gates", supplemented from
// schema.py's `_validate_version`).
func (s *Schema) Validate(value any, version string) error {
	if err := s.checkVersion(version); err != nil {
		return err
	}
	resolved, err := s.Resolve(value)
	if err != nil {
		return err
	}
	for _, c := range s.Constraints {
		if err := c.Validate(resolved); err != nil {
			return apierror.Validation(err.Error())
		}
	}
	if s.Kind == KindMap {
		m, _ := value.(map[string]any)
		for key, child := range s.Properties {
			raw, present := m[key]
			if !present {
				if child.HasDefault() || !child.Required {
					continue
				}
				return apierror.Validation(fmt.Sprintf("required spec item %q not assigned", key))
			}
			if err := child.Validate(raw, version); err != nil {
				return err
			}
		}
	}
	if s.Kind == KindList {
		list, _ := value.([]any)
		for _, item := range list {
			if err := s.Element.Validate(item, version); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Schema) checkVersion(version string) error {
	if version == "" {
		return nil
	}
	if s.MinVersion != "" && version < s.MinVersion {
		return apierror.Validation(fmt.Sprintf("min_version=%s is not supported by spec version %s", s.MinVersion, version))
	}
	if s.MaxVersion != "" && version > s.MaxVersion {
		return apierror.Validation(fmt.Sprintf("max_version=%s is not supported by spec version %s", s.MaxVersion, version))
	}
	return nil
}

// Spec is a lazy, validated projection of a data map onto a Map schema
// (§3/§9 "Spec is a lazy view binding a data map onto a schema; indexing a
// key triggers validation and default insertion").
type Spec struct {
	schema  *Schema
	data    map[string]any
	version string
}

// NewSpec binds data onto schema for the given spec version (empty if
// unversioned).
func NewSpec(schema *Schema, data map[string]any, version string) *Spec {
	return &Spec{schema: schema, data: data, version: version}
}

// Validate checks every schema key (applying required/default/version
// gates) and rejects any data key the schema doesn't recognize.
func (sp *Spec) Validate() error {
	if err := sp.schema.Validate(sp.data, sp.version); err != nil {
		return err
	}
	for key := range sp.data {
		if _, ok := sp.schema.Properties[key]; !ok {
			return apierror.Validation(fmt.Sprintf("unrecognized spec item %q", key))
		}
	}
	return nil
}

// Get resolves a single key, applying its default if absent. Indexing a
// key that doesn't exist in the schema returns an "invalid spec item"
// error; Has reports beforehand whether the schema knows the key.
func (sp *Spec) Get(key string) (any, error) {
	child, ok := sp.schema.Properties[key]
	if !ok {
		return nil, fmt.Errorf("invalid spec item: %q", key)
	}
	raw, present := sp.data[key]
	return resolveOrDefault(child, key, raw, present)
}

func (sp *Spec) Has(key string) bool {
	_, ok := sp.schema.Properties[key]
	return ok
}

// Keys returns the schema's property names in stable sorted order.
func (sp *Spec) Keys() []string {
	keys := make([]string, 0, len(sp.schema.Properties))
	for k := range sp.schema.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true", "True", "1":
			return true, true
		case "false", "False", "0":
			return false, true
		}
	}
	return false, false
}
