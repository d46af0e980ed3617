package handlers

import (
	"context"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/ratelimit"
)

// signalHook is implemented by pipeline elements that support registering a
// callback for a named signal (the fake test double does; a real pipeline
// element wrapper would too). Elements that don't implement it make the
// signal-name form of "wait" report an execution error instead of hanging
// forever.
type signalHook interface {
	OnSignal(name string, fn func(args ...any) (any, error))
}

func registerWait(reg *action.Registry, waitMultiplier float64) {
	reg.Register(&action.Type{
		Name:  "wait",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "duration", Types: "time"},
			{Name: "signal-name", Types: "string"},
			{Name: "target-element-name", Types: "string"},
			{Name: "message-type", Types: "string"},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return executeWait(a, waitMultiplier)
		},
	})
}

func executeWait(a *action.Action, waitMultiplier float64) (action.State, error) {
	sc := a.Scenario

	if secs, ok := a.FloatField("duration"); ok {
		if waitMultiplier <= 0 {
			return action.StateOK, nil // a multiplier of 0 disables waits entirely.
		}
		d := time.Duration(float64(secondsToDuration(secs)) * waitMultiplier)
		pacer := ratelimit.NewIntervalPacer(d)
		go func() {
			// Consume the pacer's own initial burst token first (fires
			// immediately), then wait out the real interval before
			// completing.
			_ = pacer.Wait(context.Background())
			_ = pacer.Wait(context.Background())
			sc.SetDone(a)
		}()
		return action.StateAsync, nil
	}

	if signalName, ok := a.StringField("signal-name"); ok {
		p, ok := requirePipeline(a)
		if !ok {
			return execErr(a, "no pipeline to wait for signal %q on", signalName)
		}
		el, ok := resolveTargetElement(a, p)
		if !ok {
			return execErr(a, "no target element found to wait for signal %q", signalName)
		}
		hook, ok := el.(signalHook)
		if !ok {
			return execErr(a, "element does not support hooking signal %q", signalName)
		}
		hook.OnSignal(signalName, func(args ...any) (any, error) {
			sc.SetDone(a)
			return nil, nil
		})
		return action.StateAsync, nil
	}

	if msgType, ok := a.StringField("message-type"); ok {
		sc.WaitForMessage(pipeline.MessageType(msgType), a)
		return action.StateAsync, nil
	}

	return execErr(a, "wait requires duration, signal-name or message-type")
}
