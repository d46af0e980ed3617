package handlers

import (
	"context"
	"fmt"

	"scenengine/internal/action"
)

func registerDotPipeline(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "dot-pipeline",
		Flags: action.FlagCanBeOptional | action.FlagNoExecutionNotFatal,
		Parameters: []action.Param{
			{Name: "name", Types: "string"},
		},
		Execute: executeDotPipeline,
	})
}

// executeDotPipeline is purely observational: it never blocks or fails the
// scenario, even if the dump itself errors.
func executeDotPipeline(ctx context.Context, a *action.Action) (action.State, error) {
	sc := a.Scenario
	if sc.Pipeline == nil || sc.DumpDotDir == "" {
		return action.StateOK, nil
	}
	name, ok := a.StringField("name")
	if !ok {
		name = fmt.Sprintf("action-%d", a.ActionNumber)
	}
	_ = sc.Pipeline.DumpDot(name, sc.DumpDotDir)
	return action.StateOK, nil
}
