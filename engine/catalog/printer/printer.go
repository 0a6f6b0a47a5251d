// Package printer provides print_reaction, the debugging reaction that logs
// the action response instead of calling a service.
package printer

import (
	"context"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/pkg/logger"
)

// Register adds the printer components to the registry.
func Register(reg *component.Registry) error {
	return reg.Register(&component.Definition{
		Name:        "print_reaction",
		Kind:        core.KindReaction,
		NewReaction: newPrintReaction,
	})
}

type printReaction struct{}

func newPrintReaction(core.Params) (component.Reaction, error) {
	return &printReaction{}, nil
}

func (r *printReaction) Execute(ctx context.Context, result *component.ActionResponse) (*component.ReactionResponse, error) {
	logger.FromContext(ctx).Info("print reaction", "result", result.AsParams())
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{"printed": "true"},
	}, nil
}
