package handlers

import (
	"context"
	"fmt"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/report"
)

func registerStop(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "stop",
		Flags: action.FlagCanBeOptional | action.FlagNoExecutionNotFatal,
		Execute: executeStop,
	})
}

// executeStop implements the stop contract: cancel the dispatcher
// task (the dispatcher observes the queue draining, so nothing further to
// signal here), check the dropped-buffer budget, then request NULL.
func executeStop(ctx context.Context, a *action.Action) (action.State, error) {
	sc := a.Scenario
	if sc.MaxDropped > 0 && sc.Dropped > sc.MaxDropped {
		sc.Report(report.LevelWarning, report.CodeConfigTooManyBuffersDropped,
			fmt.Sprintf("dropped %d buffers exceeds max-dropped %d at stop", sc.Dropped, sc.MaxDropped))
	}

	p, ok := requirePipeline(a)
	if !ok {
		return action.StateOK, nil
	}
	if err := p.SetState(pipeline.StateNull); err != nil {
		sc.Report(report.LevelCritical, report.CodeStateChangeFailure,
			fmt.Sprintf("stop: could not set state NULL: %v", err))
		return action.StateErrorReported, nil
	}
	sc.TargetState = pipeline.StateNull
	return action.StateOK, nil
}
