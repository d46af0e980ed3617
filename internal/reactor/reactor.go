// Package reactor implements the bus reactor: it consumes
// pipeline observations and couples them back to action completion via the
// deferred set_done handshake.
package reactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/report"
	"scenengine/internal/template"
)

// Reactor drains one Scenario's pipeline message stream.
type Reactor struct {
	Scenario *action.Scenario
	Registry *action.Registry
}

func New(sc *action.Scenario, registry *action.Registry) *Reactor {
	return &Reactor{Scenario: sc, Registry: registry}
}

// Run consumes pipeline.Message values until the pipeline's channel closes
// or ctx is cancelled, per the "signal-watch delivers bus messages to
// the main loop".
func (r *Reactor) Run(ctx context.Context) error {
	if r.Scenario.Pipeline == nil {
		return nil
	}
	messages := r.Scenario.Pipeline.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := r.Handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// Handle dispatches one bus observation.
func (r *Reactor) Handle(ctx context.Context, msg pipeline.Message) error {
	var err error
	switch msg.Type {
	case pipeline.MessageAsyncDone:
		r.handleAsyncDone(msg)
	case pipeline.MessageStateChanged:
		r.handleStateChanged(msg)
	case pipeline.MessageError, pipeline.MessageEOS:
		err = r.handleEOS(ctx, msg) // ERROR is terminal, same drain path as EOS.
	case pipeline.MessageBuffering:
		r.handleBuffering(msg)
	case pipeline.MessageStreamsSelected:
		r.handleStreamsSelected(msg)
	case pipeline.MessageLatency:
		r.handleLatency(msg)
	case pipeline.MessageQOS:
		r.handleQOS(msg)
	case pipeline.MessageElementAdded:
		r.handleElementAdded(ctx)
	}

	if a, ok := r.Scenario.MatchMessageWait(msg.Type); ok {
		r.Scenario.SetDone(a)
	}
	return err
}

func (r *Reactor) handleAsyncDone(msg pipeline.Message) {
	sc := r.Scenario
	sc.ChangingState = false
	sc.NeedsAsyncDone = false

	if seek, ok := sc.LastSeek(); ok {
		if seek.StartType == pipeline.SeekTypeSet {
			// already applied by RecordSeek at issue time; re-derive
			// seeked_in_pause here since it depends on target state, which
			// may only be known once the pipeline actually settles.
		}
		if sc.TargetState == pipeline.StatePaused {
			sc.SeekedInPause = true
		}
	}

	head := sc.Head()
	if head != nil && head.State() == action.StateAsync {
		sc.SetDone(head)
	}
}

func (r *Reactor) handleStateChanged(msg pipeline.Message) {
	sc := r.Scenario
	newState := template.StringField(msg.Payload, "new-state")

	if newState != "" && strings.EqualFold(newState, sc.TargetState.String()) {
		head := sc.Head()
		if head != nil && head.State() == action.StateAsync {
			sc.SetDone(head)
		}
	}

	if strings.EqualFold(newState, pipeline.StatePlaying.String()) && sc.Pipeline != nil {
		if latency, err := sc.Pipeline.Latency(); err == nil && sc.MaxLatency > 0 && latency > sc.MaxLatency {
			sc.Report(report.LevelWarning, report.CodeConfigLatencyTooHigh,
				fmt.Sprintf("latency %s exceeds max-latency %s", latency, sc.MaxLatency))
		}
	}
}

func (r *Reactor) handleBuffering(msg pipeline.Message) {
	percent := template.IntField(msg.Payload, "percent")
	r.Scenario.Buffering = percent < 100
}

func (r *Reactor) handleStreamsSelected(msg pipeline.Message) {
	sc := r.Scenario
	pending := sc.PendingSwitchTrack
	if pending == nil {
		return
	}

	selected := template.StringArrayField(msg.Payload, "streams")

	expectedField, _ := pending.Field("expected")
	expectedList, _ := expectedField.([]any)
	selectedSet := make(map[string]bool, len(selected))
	for _, s := range selected {
		selectedSet[s] = true
	}

	for _, e := range expectedList {
		if s, ok := e.(string); ok && !selectedSet[s] {
			sc.Report(report.LevelCritical, report.CodeScenarioActionExecutionErr,
				fmt.Sprintf("stream %q has not been activated", s))
		}
	}

	sc.PendingSwitchTrack = nil
	sc.SetDone(pending)
}

func (r *Reactor) handleLatency(msg pipeline.Message) {
	sc := r.Scenario
	if sc.Pipeline == nil {
		return
	}
	latency, err := sc.Pipeline.Latency()
	if err != nil {
		return
	}
	if template.HasField(msg.Payload, "latency_ms") {
		latency = time.Duration(template.IntField(msg.Payload, "latency_ms")) * time.Millisecond
	}
	if sc.MaxLatency > 0 && latency > sc.MaxLatency {
		sc.Report(report.LevelWarning, report.CodeConfigLatencyTooHigh,
			fmt.Sprintf("latency %s exceeds max-latency %s", latency, sc.MaxLatency))
	}
}

func (r *Reactor) handleQOS(msg pipeline.Message) {
	sc := r.Scenario
	dropped := int(template.IntField(msg.Payload, "dropped"))
	sc.Dropped += dropped
	if sc.MaxDropped > 0 && sc.Dropped > sc.MaxDropped {
		sc.Report(report.LevelWarning, report.CodeConfigTooManyBuffersDropped,
			fmt.Sprintf("dropped %d buffers exceeds max-dropped %d", sc.Dropped, sc.MaxDropped))
	}
}

// handleEOS implements the EOS path, shared with ERROR (both are
// terminal): drain any pending set_done completions before inspecting
// queue state, report SCENARIO_NOT_ENDED for anything left unfinished, and
// synthesize a stop action.
func (r *Reactor) handleEOS(ctx context.Context, msg pipeline.Message) error {
	sc := r.Scenario
	sc.GotEOS = true

	r.drainPendingCompletions()

	var stuck []string
	for _, a := range sc.RemainingMainActions() {
		if a.State() == action.StateOK || a.State() == action.StateError || a.State() == action.StateErrorReported {
			continue
		}
		if a.Optional || (a.Type != nil && a.Type.Flags.Has(action.FlagNoExecutionNotFatal)) {
			continue
		}
		name := "?"
		if a.Type != nil {
			name = a.Type.Name
		}
		stuck = append(stuck, fmt.Sprintf("%d(%s)", a.ActionNumber, name))
	}
	if len(stuck) > 0 {
		sc.Report(report.LevelWarning, report.CodeScenarioNotEnded,
			fmt.Sprintf("actions not completed at end of stream: %s", strings.Join(stuck, ", ")))
	}

	sc.ClearQueues()

	return r.synthesizeStop(ctx)
}

func (r *Reactor) drainPendingCompletions() {
	for {
		select {
		case n, ok := <-r.Scenario.Completions():
			if !ok {
				return
			}
			r.Scenario.CompleteAction(n)
		default:
			return
		}
	}
}

// handleElementAdded reacts to a newly created element that may satisfy an
// action queued on the on-addition list (currently only set-property,
// waiting on an element a dynamic pad hasn't created yet). Every pending
// on-addition action is re-checked against the pipeline's current element
// set, executed and removed from the queue on a match.
func (r *Reactor) handleElementAdded(ctx context.Context) {
	sc := r.Scenario
	if sc.Pipeline == nil {
		return
	}
	for _, a := range sc.OnAdditionActions() {
		if a.Type == nil || a.Type.Name != "set-property" || a.Type.Execute == nil {
			continue
		}
		if _, ok := onAdditionTargetElement(a, sc.Pipeline); !ok {
			continue
		}
		if err := a.Prepare(ctx); err != nil {
			sc.Report(report.LevelCritical, report.CodeScenarioActionExecutionErr,
				fmt.Sprintf("action %d (%s) prepare failed: %v", a.ActionNumber, a.Type.Name, err))
			sc.RemoveOnAddition(a)
			continue
		}
		state, err := a.Type.Execute(ctx, a)
		if err != nil {
			sc.Report(report.LevelCritical, report.CodeScenarioActionExecutionErr,
				fmt.Sprintf("action %d (%s): %v", a.ActionNumber, a.Type.Name, err))
			sc.RemoveOnAddition(a)
			continue
		}
		a.SetState(state)
		sc.RemoveOnAddition(a)
	}
}

// onAdditionTargetElement mirrors the name/factory-name/class-name
// resolution order used by set-property's own handler, without importing
// the handlers package: it only needs to know whether a target now exists.
func onAdditionTargetElement(a *action.Action, p pipeline.Pipeline) (pipeline.Element, bool) {
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

// synthesizeStop runs the registered "stop" action type directly at end of
// stream, without going through the loader.
func (r *Reactor) synthesizeStop(ctx context.Context) error {
	if r.Registry == nil {
		return nil
	}
	typ, ok := r.Registry.Lookup("stop")
	if !ok || typ.Execute == nil {
		return nil
	}
	a := action.NewAction(0, typ, map[string]any{})
	a.Scenario = r.Scenario
	if err := a.Prepare(ctx); err != nil {
		return fmt.Errorf("synthesized stop action: %w", err)
	}
	if _, err := typ.Execute(ctx, a); err != nil {
		return fmt.Errorf("synthesized stop action: %w", err)
	}
	return nil
}
