package handlers

import (
	"context"

	"scenengine/internal/action"
)

func registerEOS(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "eos",
		Flags: action.FlagCanBeOptional,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			p, ok := requirePipeline(a)
			if !ok {
				return execErr(a, "no pipeline to send EOS on")
			}
			if err := p.SendEOS(); err != nil {
				return execErr(a, "sending EOS failed: %v", err)
			}
			return action.StateOK, nil
		},
	})
}
