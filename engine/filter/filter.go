package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Operators and match logic
// -----------------------------------------------------------------------------

type Operator string

const (
	OpContains    Operator = "contains"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
	ErrUnsupportedMatch    = errors.New("unsupported match logic")
)

// -----------------------------------------------------------------------------
// Filter
// -----------------------------------------------------------------------------

// Condition compares a single event field against a fixed value.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Filter is the declarative event filter actions accept under their "filter"
// config key. Match decides whether all conditions must hold or any single
// one suffices; it defaults to "all".
type Filter struct {
	Conditions []Condition `json:"conditions"`
	Match      Match       `json:"match"`
}

// Parse decodes a filter from its config representation, a generic map as it
// arrives from JSON. A nil input yields a nil filter.
func Parse(raw any) (*Filter, error) {
	if raw == nil {
		return nil, nil
	}
	if f, ok := raw.(*Filter); ok {
		return f, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("filter: malformed definition: %w", err)
	}
	var f Filter
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("filter: malformed definition: %w", err)
	}
	if f.Match == "" {
		f.Match = MatchAll
	}
	return &f, nil
}

// Evaluate reports whether data passes the filter. Evaluation is pure: the
// same filter and data always produce the same verdict. Unknown operators and
// match values surface as errors rather than a silent false.
func (f *Filter) Evaluate(data map[string]any) (bool, error) {
	if f == nil {
		return true, nil
	}
	match := f.Match
	if match == "" {
		match = MatchAll
	}
	switch match {
	case MatchAll:
		for i := range f.Conditions {
			ok, err := f.Conditions[i].evaluate(data)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case MatchAny:
		for i := range f.Conditions {
			ok, err := f.Conditions[i].evaluate(data)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedMatch, match)
	}
}

func (c *Condition) evaluate(data map[string]any) (bool, error) {
	value, found := data[c.Field]
	if !found || value == nil {
		// An absent field never matches, even for not_equals.
		return false, nil
	}
	switch c.Operator {
	case OpContains:
		return strings.Contains(stringify(value), stringify(c.Value)), nil
	case OpStartsWith:
		return strings.HasPrefix(stringify(value), stringify(c.Value)), nil
	case OpEndsWith:
		return strings.HasSuffix(stringify(value), stringify(c.Value)), nil
	case OpEquals:
		return strictEqual(value, c.Value), nil
	case OpNotEquals:
		return !strictEqual(value, c.Value), nil
	case OpGreaterThan:
		return compare(value, c.Value) > 0, nil
	case OpLessThan:
		return compare(value, c.Value) < 0, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.Operator)
	}
}

// strictEqual compares without cross-type coercion: numbers of any width
// compare by value, but a string never equals a number. Composite values
// fall back to deep equality.
func strictEqual(a, b any) bool {
	fa, aok := numeric(a)
	fb, bok := numeric(b)
	if aok || bok {
		return aok && bok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values numerically when both parse as numbers and
// lexicographically otherwise. String comparisons are case sensitive.
func compare(a, b any) int {
	fa, aok := asFloat(a)
	fb, bok := asFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

// numeric extracts a number without parsing strings.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
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
	default:
		return 0, false
	}
}

// asFloat additionally accepts numeric strings, so ordering conditions work
// on fields that arrive as text.
func asFloat(v any) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
