package component

import (
	"context"

	"github.com/hookline/hookline/engine/core"
)

// -----------------------------------------------------------------------------
// Contracts
// -----------------------------------------------------------------------------

// Trigger watches one upstream source. Evaluate returns a response when the
// watched event occurred since the last call, nil when there is nothing to
// report, or an error. Implementations must return promptly once ctx is
// canceled and must never block past it. Triggers holding long-lived
// connections additionally implement io.Closer; the scheduler closes them
// when the owning evaluator unwinds.
type Trigger interface {
	Evaluate(ctx context.Context) (*TriggerResponse, error)
}

// Action inspects the event projected into its config and produces the
// payload handed to the reaction. Returning a nil response with a nil error
// means the action filtered the event out and the job ends silently.
type Action interface {
	Execute(ctx context.Context) (*ActionResponse, error)
}

// Reaction performs the outward side effect using the action's result.
type Reaction interface {
	Execute(ctx context.Context, result *ActionResponse) (*ReactionResponse, error)
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

// TriggerResponse is the flattened event a trigger reports. Fields carries
// the kind-specific top-level entries (commit_sha, message_id, ...); Content
// is the raw upstream payload serialized to a string; Details is free-form
// metadata about the firing.
type TriggerResponse struct {
	TriggeredAt float64
	Content     string
	Details     core.Params
	Fields      core.Params
}

// AsParams flattens the response into the wire shape used for event data,
// action param projection and reaction params. Kind-specific fields sit at
// the top level next to triggered_at, content and details.
func (r *TriggerResponse) AsParams() core.Params {
	out := make(core.Params, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["triggered_at"] = r.TriggeredAt
	out["content"] = r.Content
	out["details"] = r.Details.AsMap()
	return out
}

// ActionResponse is what an action hands to the reaction.
type ActionResponse struct {
	Success bool
	Details core.Params
	Fields  core.Params
}

// AsParams flattens the response for placeholder expansion and logging.
func (r *ActionResponse) AsParams() core.Params {
	if r == nil {
		return core.Params{}
	}
	out := make(core.Params, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["success"] = r.Success
	out["details"] = r.Details.AsMap()
	return out
}

// ReactionResponse reports the outcome of a reaction. Reactions are fire and
// forget: a false Success is logged by the worker, never retried.
type ReactionResponse struct {
	Success bool
	Details core.Params
}
