// Package handlers registers the scenario engine's built-in action types
// against an action.Registry. Each handler lives in its own small,
// self-contained file grouped by concern (state.go, seek.go, track.go, ...).
package handlers

import (
	"fmt"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/report"
)

// RegisterAll registers every built-in handler on reg. waitMultiplier
// scales the "wait" handler's timed form (SCENARIO_WAIT_MULTIPLIER); a
// multiplier of zero or less disables waits entirely.
func RegisterAll(reg *action.Registry, waitMultiplier float64) {
	registerSeek(reg)
	registerStateChanges(reg)
	registerStop(reg)
	registerEOS(reg)
	registerSwitchTrack(reg)
	registerWait(reg, waitMultiplier)
	registerProperty(reg)
	registerPluginConfig(reg)
	registerSetVars(reg)
	registerSetDebugThreshold(reg)
	registerAppsrc(reg)
	registerFlush(reg)
	registerEmitSignal(reg)
	registerDotPipeline(reg)
	registerCheckLastSample(reg)
}

// execErr reports SCENARIO_ACTION_EXECUTION_ERROR and returns the
// ERROR_REPORTED terminal state, per the closing rule: "a failure
// to locate a required pipeline or target element emits
// SCENARIO_ACTION_EXECUTION_ERROR and returns ERROR-REPORTED".
func execErr(a *action.Action, format string, args ...any) (action.State, error) {
	msg := fmt.Sprintf(format, args...)
	if a.Scenario != nil {
		a.Scenario.Report(report.LevelCritical, report.CodeScenarioActionExecutionErr,
			fmt.Sprintf("action %d (%s): %s", a.ActionNumber, a.Type.Name, msg))
	}
	return action.StateErrorReported, nil
}

// requirePipeline fetches the scenario's pipeline or reports/returns the
// standard "no pipeline" execution error.
func requirePipeline(a *action.Action) (pipeline.Pipeline, bool) {
	if a.Scenario == nil || a.Scenario.Pipeline == nil {
		return nil, false
	}
	return a.Scenario.Pipeline, true
}

// resolveTargetElement implements the name/factory-name/class-name
// resolution order used by set-property, flush, emit-signal and
// wait's signal-name form.
func resolveTargetElement(a *action.Action, p pipeline.Pipeline) (pipeline.Element, bool) {
	if name, ok := a.StringField("target-element-name"); ok {
		return p.FindElement(name)
	}
	if factory, ok := a.StringField("target-element-factory-name"); ok {
		return p.FindElementByFactory(factory)
	}
	if class, ok := a.StringField("target-element-class-name"); ok {
		return p.FindElementByClass(class)
	}
	return nil, false
}

// secondsToDuration converts a structure field already resolved to
// floating-point seconds (Prepare has already stripped "time" typed
// fields down to seconds) into a time.Duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
