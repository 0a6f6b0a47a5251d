package area

import (
	"fmt"
	"time"

	"github.com/hookline/hookline/engine/core"
)

// Area binds one action and one reaction, plus the trigger that decides when
// the pair runs. Kind names refer to component registry entries; the config
// maps are the user-supplied option maps validated against the component
// schemas at scheduling and execution time, not at rest.
type Area struct {
	ID             core.ID     `db:"id"             json:"id"`
	UserID         core.ID     `db:"user_id"        json:"user_id"`
	ActionKind     string      `db:"action_kind"    json:"action_kind"`
	ReactionKind   string      `db:"reaction_kind"  json:"reaction_kind"`
	TriggerKind    string      `db:"trigger_kind"   json:"trigger_kind,omitempty"`
	ActionConfig   core.Params `db:"action_config"  json:"action_config"`
	ReactionConfig core.Params `db:"reaction_config" json:"reaction_config"`
	TriggerConfig  core.Params `db:"trigger_config" json:"trigger_config"`
	CreatedAt      time.Time   `db:"created_at"     json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"     json:"updated_at"`
}

// Validate checks the structural invariants that hold regardless of which
// components the kind names resolve to.
func (a *Area) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("area without an id")
	}
	if a.UserID == "" {
		return fmt.Errorf("area %s: missing user id", a.ID)
	}
	if a.ActionKind == "" {
		return fmt.Errorf("area %s: missing action kind", a.ID)
	}
	if a.ReactionKind == "" {
		return fmt.Errorf("area %s: missing reaction kind", a.ID)
	}
	return nil
}

// Schedulable reports whether the area carries a trigger and can be given to
// an evaluator. Areas without a trigger exist but only run when fired through
// an out-of-band path.
func (a *Area) Schedulable() bool {
	return a.TriggerKind != ""
}
