package component

import (
	"fmt"
	"time"

	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
)

// -----------------------------------------------------------------------------
// Implicit schema fields
// -----------------------------------------------------------------------------

// Every component accepts a token injected from the credential store. Triggers
// additionally accept the polling interval and cursor; actions accept the
// declarative event filter. Declared fields of the same name win, so a
// component may tighten token to required.
var (
	baseFields = schema.Schema{
		"token": {Type: schema.TypeString, Description: "credential injected at runtime"},
	}
	triggerFields = schema.Schema{
		"interval": {Type: schema.TypeInt, Default: 1, Min: schema.MinValue(1), Description: "polling interval in seconds"},
		"last_run": {Type: schema.TypeFloat, Description: "epoch seconds of the last evaluation"},
	}
	actionFields = schema.Schema{
		"filter": {Type: schema.TypeMap, Description: "declarative event filter"},
	}
)

// -----------------------------------------------------------------------------
// Definition
// -----------------------------------------------------------------------------

// Definition binds a component name to its config schema and constructor.
// Exactly one constructor matching Kind must be set.
type Definition struct {
	Name         string
	Kind         core.ComponentKind
	Service      core.ServiceID
	ConfigSchema schema.Schema
	NewTrigger   func(cfg core.Params) (Trigger, error)
	NewAction    func(cfg core.Params) (Action, error)
	NewReaction  func(cfg core.Params) (Reaction, error)
}

func (d *Definition) check() error {
	if d.Name == "" {
		return fmt.Errorf("component definition without a name")
	}
	if err := d.ConfigSchema.Check(); err != nil {
		return fmt.Errorf("component %q: %w", d.Name, err)
	}
	var ctor bool
	switch d.Kind {
	case core.KindTrigger:
		ctor = d.NewTrigger != nil && d.NewAction == nil && d.NewReaction == nil
	case core.KindAction:
		ctor = d.NewAction != nil && d.NewTrigger == nil && d.NewReaction == nil
	case core.KindReaction:
		ctor = d.NewReaction != nil && d.NewTrigger == nil && d.NewAction == nil
	default:
		return fmt.Errorf("component %q: unknown kind %q", d.Name, d.Kind)
	}
	if !ctor {
		return fmt.Errorf("component %q: constructor does not match kind %q", d.Name, d.Kind)
	}
	return nil
}

// EffectiveSchema returns the declared schema layered over the implicit
// fields for the definition's kind.
func (d *Definition) EffectiveSchema() schema.Schema {
	implicit := baseFields
	switch d.Kind {
	case core.KindTrigger:
		implicit = triggerFields.Merge(baseFields)
	case core.KindAction:
		implicit = actionFields.Merge(baseFields)
	}
	return d.ConfigSchema.Merge(implicit)
}

// ValidateConfig validates cfg against the effective schema. For triggers, a
// missing last_run cursor defaults to now minus the validated interval so the
// first evaluation is immediately eligible to fire.
func (d *Definition) ValidateConfig(cfg core.Params) (core.Params, error) {
	validated, err := d.EffectiveSchema().Validate(cfg)
	if err != nil {
		return nil, err
	}
	if d.Kind == core.KindTrigger {
		if _, ok := validated["last_run"]; !ok {
			interval, _ := validated["interval"].(int)
			now := float64(time.Now().UnixNano()) / 1e9
			validated["last_run"] = now - float64(interval)
		}
	}
	return validated, nil
}

// DeclaredFields lists the component's own schema field names in sorted
// order, without the implicit fields. Event projection copies exactly these.
func (d *Definition) DeclaredFields() []string {
	return d.ConfigSchema.FieldNames()
}
