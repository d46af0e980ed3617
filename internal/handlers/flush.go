package handlers

import (
	"context"

	"scenengine/internal/action"
)

func registerFlush(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "flush",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "reset-time", Types: "bool", Default: true},
		},
		Execute: executeFlush,
	})
}

func executeFlush(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to flush")
	}
	el, ok := resolveTargetElement(a, p)
	if !ok {
		return execErr(a, "no target element found for flush")
	}
	resetTime := true
	if v, ok := a.BoolField("reset-time"); ok {
		resetTime = v
	}
	if err := el.SendFlush(resetTime); err != nil {
		return execErr(a, "flush failed: %v", err)
	}
	return action.StateOK, nil
}
