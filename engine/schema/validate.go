package schema

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hookline/hookline/engine/core"
)

// -----------------------------------------------------------------------------
// FieldError
// -----------------------------------------------------------------------------

// FieldError reports the first config field that failed validation. It
// unwraps to core.ErrInvalidConfig so callers can match on the sentinel.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return core.ErrInvalidConfig
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// Validate checks input against the schema and returns a new config map with
// coerced values and defaults substituted. Fields not declared by the schema
// are preserved untouched. A null value counts as absent. Declared fields are
// checked in sorted name order so the reported field is deterministic.
func (s Schema) Validate(input core.Params) (core.Params, error) {
	out := make(core.Params, len(input)+len(s))
	for name, value := range input {
		if _, declared := s[name]; !declared {
			out[name] = value
		}
	}
	for _, name := range s.FieldNames() {
		field := s[name]
		raw, present := input[name]
		if !present || raw == nil {
			if field.Required {
				return nil, &FieldError{Field: name, Reason: "is required"}
			}
			if field.Default != nil {
				out[name] = field.Default
			}
			continue
		}
		value, err := coerce(field.Type, raw)
		if err != nil {
			return nil, &FieldError{Field: name, Reason: err.Error()}
		}
		if err := checkMin(field, value); err != nil {
			return nil, &FieldError{Field: name, Reason: err.Error()}
		}
		out[name] = value
	}
	return out, nil
}

func checkMin(field Field, value any) error {
	if field.Min == nil {
		return nil
	}
	var got float64
	switch v := value.(type) {
	case int:
		got = float64(v)
	case float64:
		got = v
	default:
		return nil
	}
	if got < *field.Min {
		return fmt.Errorf("must be at least %v, got %v", *field.Min, value)
	}
	return nil
}

// coerce converts raw into the declared type. Numeric fields accept strings
// parseable as the declared type; integer fields accept whole floats since
// JSON decoding yields float64 for every number.
func coerce(t FieldType, raw any) (any, error) {
	switch t {
	case TypeString:
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string, got %T", raw)
		}
		return v, nil
	case TypeInt:
		return coerceInt(raw)
	case TypeFloat:
		return coerceFloat(raw)
	case TypeBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean, got %T", raw)
		}
		return v, nil
	case TypeStringList:
		return coerceStringList(raw)
	case TypeMap:
		return coerceMap(raw)
	case TypeAny:
		return raw, nil
	default:
		return nil, fmt.Errorf("has unknown schema type %q", t)
	}
}

func coerceInt(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("must be an integer, got %v", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("must be an integer, got %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("must be an integer, got %T", raw)
	}
}

func coerceFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("must be a number, got %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("must be a number, got %T", raw)
	}
}

func coerceStringList(raw any) (any, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be a list of strings, element %d is %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a list of strings, got %T", raw)
	}
}

func coerceMap(raw any) (any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case core.Params:
		return v.AsMap(), nil
	default:
		return nil, fmt.Errorf("must be an object, got %T", raw)
	}
}
