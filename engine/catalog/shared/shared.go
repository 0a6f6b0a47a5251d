// Package shared holds the scaffolding common to the catalog components:
// the declarative filter gate every action honors, the {field} placeholder
// expansion the mail and issue reactions use, and the credential extraction
// for components that cannot call their upstream anonymously.
package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/filter"
)

// Epoch renders a time as float epoch seconds, the timestamp form events
// carry.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Token extracts the credential injected into a validated config. Components
// whose upstream rejects anonymous calls resolve it at construction, so an
// unlinked service surfaces as core.ErrMissingCredential instead of a doomed
// upstream call.
func Token(cfg core.Params) (string, error) {
	token, _ := cfg.Prop("token").(string)
	if token == "" {
		return "", core.ErrMissingCredential
	}
	return token, nil
}

// Gate applies the optional declarative filter an action carries under its
// implicit "filter" config key. A nil gate accepts everything.
type Gate struct {
	filter *filter.Filter
}

// GateFromConfig parses the filter out of a validated action config.
func GateFromConfig(cfg core.Params) (*Gate, error) {
	f, err := filter.Parse(cfg.Prop("filter"))
	if err != nil {
		return nil, err
	}
	return &Gate{filter: f}, nil
}

// Accept reports whether the effective config, static options overlaid with
// the projected event, passes the filter.
func (g *Gate) Accept(data core.Params) (bool, error) {
	if g == nil || g.filter == nil {
		return true, nil
	}
	return g.filter.Evaluate(data)
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Expand substitutes {field} placeholders in tpl with values from data. A
// placeholder naming an absent field is an error so a misconfigured template
// fails loudly instead of sending half-filled text.
func Expand(tpl string, data core.Params) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := data[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return formatValue(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template references absent fields %v", missing)
	}
	return out, nil
}

// formatValue renders a value for template substitution. Floats print in
// plain decimal, never scientific notation, since epoch seconds are the
// common case.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
