package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/report"
)

func registerStateChanges(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "set-state",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "state", Mandatory: true, Types: "string"},
		},
		Execute: executeSetState,
	})
	reg.Register(&action.Type{
		Name:  "play",
		Flags: action.FlagCanBeOptional,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return setTargetState(a, pipeline.StatePlaying)
		},
	})
	reg.Register(&action.Type{
		Name:  "pause",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "duration", Types: "time", Description: "restore to PLAYING after duration"},
		},
		Execute: executePause,
	})
}

func executeSetState(ctx context.Context, a *action.Action) (action.State, error) {
	name, _ := a.StringField("state")
	target, ok := parseState(name)
	if !ok {
		return execErr(a, "unknown target state %q", name)
	}
	return setTargetState(a, target)
}

func executePause(ctx context.Context, a *action.Action) (action.State, error) {
	state, err := setTargetState(a, pipeline.StatePaused)
	if err != nil || state == action.StateErrorReported {
		return state, err
	}
	if secs, ok := a.FloatField("duration"); ok {
		d := secondsToDuration(secs)
		sc := a.Scenario
		time.AfterFunc(d, func() {
			sc.RequestStateRestore(pipeline.StatePlaying)
		})
	}
	return state, nil
}

func setTargetState(a *action.Action, target pipeline.State) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to change state on")
	}
	sc := a.Scenario
	if p.State() == target {
		return action.StateOK, nil
	}
	if err := p.SetState(target); err != nil {
		sc.Report(report.LevelCritical, report.CodeStateChangeFailure,
			fmt.Sprintf("action %d (%s): could not set state %s: %v", a.ActionNumber, a.Type.Name, target, err))
		return action.StateErrorReported, nil
	}
	sc.TargetState = target
	sc.ChangingState = true
	sc.NeedsAsyncDone = true
	return action.StateAsync, nil
}

func parseState(name string) (pipeline.State, bool) {
	switch strings.ToLower(name) {
	case "null":
		return pipeline.StateNull, true
	case "ready":
		return pipeline.StateReady, true
	case "paused":
		return pipeline.StatePaused, true
	case "playing":
		return pipeline.StatePlaying, true
	default:
		return 0, false
	}
}
