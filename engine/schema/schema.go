package schema

import (
	"fmt"
	"sort"
)

// -----------------------------------------------------------------------------
// Field types
// -----------------------------------------------------------------------------

// FieldType enumerates the value shapes a config field may declare.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeInt        FieldType = "int"
	TypeFloat      FieldType = "float"
	TypeBool       FieldType = "bool"
	TypeStringList FieldType = "string_list"
	TypeMap        FieldType = "map"
	TypeAny        FieldType = "any"
)

func (t FieldType) IsValid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeStringList, TypeMap, TypeAny:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Field
// -----------------------------------------------------------------------------

// Field declares a single entry of a component config schema.
//
// Default is substituted when an optional field is absent (or null) in the
// input. Min applies to int and float fields only.
type Field struct {
	Type        FieldType
	Required    bool
	Default     any
	Min         *float64
	Description string
}

// MinValue is a convenience for declaring numeric lower bounds inline.
func MinValue(v float64) *float64 {
	return &v
}

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

// Schema maps config field names to their declarations. A nil Schema accepts
// any input unchanged.
type Schema map[string]Field

// FieldNames returns the declared field names in sorted order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge layers s over base: fields declared in s win over fields of the same
// name in base. Neither input is mutated.
func (s Schema) Merge(base Schema) Schema {
	out := make(Schema, len(base)+len(s))
	for name, field := range base {
		out[name] = field
	}
	for name, field := range s {
		out[name] = field
	}
	return out
}

// Check verifies the schema declaration itself is well formed.
func (s Schema) Check() error {
	for _, name := range s.FieldNames() {
		field := s[name]
		if name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		if !field.Type.IsValid() {
			return fmt.Errorf("schema field %q: unknown type %q", name, field.Type)
		}
	}
	return nil
}
