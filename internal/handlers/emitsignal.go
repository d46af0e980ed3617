package handlers

import (
	"context"

	"scenengine/internal/action"
)

func registerEmitSignal(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "emit-signal",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "signal-name", Mandatory: true, Types: "string"},
		},
		Execute: executeEmitSignal,
	})
}

func executeEmitSignal(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to emit a signal on")
	}
	el, ok := resolveTargetElement(a, p)
	if !ok {
		return execErr(a, "no target element found for emit-signal")
	}
	name, _ := a.StringField("signal-name")
	if _, err := el.EmitSignal(name); err != nil {
		return execErr(a, "emitting signal %q failed: %v", name, err)
	}
	return action.StateOK, nil
}
