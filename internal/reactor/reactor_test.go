package reactor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/dispatcher"
	"scenengine/internal/pipeline"
	"scenengine/internal/report"
)

func newTestScenario(t *testing.T) (*action.Scenario, *pipeline.FakePipeline) {
	t.Helper()
	sc := action.NewScenario(report.NewCollector())
	fp := pipeline.NewFakePipeline()
	sc.Pipeline = fp
	return sc, fp
}

func TestHandleAsyncDone_CompletesHeadAction(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(0)
	reg := action.NewRegistry()
	reg.Register(&action.Type{
		Name: "seek",
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateAsync, nil
		},
	})
	typ, _ := reg.Lookup("seek")

	a := action.NewAction(1, typ, map[string]any{})
	sc.QueueMain(a)
	sc.RecordSeek(pipeline.SeekRequest{StartType: pipeline.SeekTypeSet, Start: 5 * time.Second})
	sc.TargetState = pipeline.StatePaused

	d := dispatcher.New(sc)
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	head := sc.Head()
	if head == nil || head.State() != action.StateAsync {
		t.Fatalf("expected the head action to be ASYNC after Tick, got %+v", head)
	}

	r := New(sc, reg)
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageAsyncDone}); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-sc.Completions():
		if n != head.ActionNumber {
			t.Errorf("completed action number = %d, want %d", n, head.ActionNumber)
		}
	default:
		t.Fatal("expected a completion to be posted")
	}
	if !sc.SeekedInPause {
		t.Error("expected seeked_in_pause to be set for a PAUSED target seek")
	}
}

func TestHandleBuffering(t *testing.T) {
	sc, _ := newTestScenario(t)
	r := New(sc, action.NewRegistry())

	payload, _ := json.Marshal(map[string]int{"percent": 40})
	r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageBuffering, Payload: payload})
	if !sc.Buffering {
		t.Fatal("expected buffering=true at 40%")
	}

	payload, _ = json.Marshal(map[string]int{"percent": 100})
	r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageBuffering, Payload: payload})
	if sc.Buffering {
		t.Fatal("expected buffering=false at 100%")
	}
}

func TestHandleQOS_ReportsWhenOverBudget(t *testing.T) {
	sc, _ := newTestScenario(t)
	sc.MaxDropped = 5
	collector := sc.Reporter.(*report.Collector)
	r := New(sc, action.NewRegistry())

	payload, _ := json.Marshal(map[string]int{"dropped": 10})
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageQOS, Payload: payload}); err != nil {
		t.Fatal(err)
	}
	collector.Close()
	if sc.Dropped != 10 {
		t.Errorf("dropped = %d", sc.Dropped)
	}
	var found bool
	for _, evt := range collector.History() {
		if evt.Code == report.CodeConfigTooManyBuffersDropped {
			found = true
		}
	}
	if !found {
		t.Error("expected a too-many-buffers-dropped report when dropped exceeds max-dropped")
	}
}

func TestHandleEOS_SynthesizesStop(t *testing.T) {
	sc, fp := newTestScenario(t)
	reg := action.NewRegistry()
	stopped := false
	reg.Register(&action.Type{
		Name: "stop",
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			stopped = true
			return action.StateOK, nil
		},
	})

	r := New(sc, reg)
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageEOS}); err != nil {
		t.Fatal(err)
	}
	if !sc.GotEOS {
		t.Error("expected got_eos to be set")
	}
	if !stopped {
		t.Error("expected the synthesized stop action to run")
	}
	_ = fp
}

func TestHandleEOS_ReportsUnfinishedActions(t *testing.T) {
	sc, _ := newTestScenario(t)
	reg := action.NewRegistry()
	reg.Register(&action.Type{Name: "stop", Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
		return action.StateOK, nil
	}})

	pending := action.NewAction(1, reg.Register(&action.Type{Name: "wait"}), map[string]any{})
	pending.Scenario = sc
	sc.QueueMain(pending)

	collector := sc.Reporter.(*report.Collector)
	r := New(sc, reg)
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageEOS}); err != nil {
		t.Fatal(err)
	}
	collector.Close()

	var found bool
	for _, evt := range collector.History() {
		if evt.Code == report.CodeScenarioNotEnded {
			found = true
		}
	}
	if !found {
		t.Error("expected a scenario-not-ended report for the still-pending action")
	}
}

func TestHandleLatency_ReportsOverBudget(t *testing.T) {
	sc, fp := newTestScenario(t)
	sc.MaxLatency = 10 * time.Millisecond
	fp.SetLatency(50 * time.Millisecond)
	r := New(sc, action.NewRegistry())

	collector := sc.Reporter.(*report.Collector)
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageLatency}); err != nil {
		t.Fatal(err)
	}
	collector.Close()

	var found bool
	for _, evt := range collector.History() {
		if evt.Code == report.CodeConfigLatencyTooHigh {
			found = true
		}
	}
	if !found {
		t.Error("expected a config-latency-too-high report")
	}
}

func TestHandleStreamsSelected_MatchesExpectedCompletesPending(t *testing.T) {
	sc, _ := newTestScenario(t)
	reg := action.NewRegistry()
	pending := action.NewAction(1, reg.Register(&action.Type{Name: "switch-track"}), map[string]any{
		"expected": []any{"audio-1"},
	})
	pending.Scenario = sc
	sc.PendingSwitchTrack = pending

	collector := sc.Reporter.(*report.Collector)
	r := New(sc, reg)

	payload, _ := json.Marshal(map[string]any{"streams": []string{"audio-1"}})
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageStreamsSelected, Payload: payload}); err != nil {
		t.Fatal(err)
	}
	collector.Close()

	for _, evt := range collector.History() {
		if evt.Code == report.CodeScenarioActionExecutionErr {
			t.Errorf("unexpected mismatch report for a matching selection: %+v", evt)
		}
	}
	if sc.PendingSwitchTrack != nil {
		t.Error("expected PendingSwitchTrack to be cleared")
	}
	select {
	case n := <-sc.Completions():
		if n != pending.ActionNumber {
			t.Errorf("completed action number = %d, want %d", n, pending.ActionNumber)
		}
	default:
		t.Fatal("expected the pending switch-track action to be completed")
	}
}

func TestHandleStreamsSelected_MismatchReportsError(t *testing.T) {
	sc, _ := newTestScenario(t)
	reg := action.NewRegistry()
	pending := action.NewAction(1, reg.Register(&action.Type{Name: "switch-track"}), map[string]any{
		"expected": []any{"audio-1"},
	})
	pending.Scenario = sc
	sc.PendingSwitchTrack = pending

	collector := sc.Reporter.(*report.Collector)
	r := New(sc, reg)

	payload, _ := json.Marshal(map[string]any{"streams": []string{"audio-2"}})
	if err := r.Handle(context.Background(), pipeline.Message{Type: pipeline.MessageStreamsSelected, Payload: payload}); err != nil {
		t.Fatal(err)
	}
	collector.Close()

	var found bool
	for _, evt := range collector.History() {
		if evt.Code == report.CodeScenarioActionExecutionErr {
			found = true
		}
	}
	if !found {
		t.Error("expected a scenario-action-execution-error report for a stream not in the expected set")
	}
}

func TestHandleElementAdded_ExecutesMatchingOnAdditionSetProperty(t *testing.T) {
	sc, fp := newTestScenario(t)
	reg := action.NewRegistry()

	var executed bool
	typ := reg.Register(&action.Type{
		Name:  "set-property",
		Flags: action.FlagCanExecuteOnAddition,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			executed = true
			return action.StateOK, nil
		},
	})
	pending := action.NewAction(1, typ, map[string]any{"target-element-name": "volume"})
	pending.Scenario = sc
	sc.QueueOnAddition(pending)

	r := New(sc, reg)

	el := pipeline.NewFakeElement("volume", "volume", "Filter/Effect")
	fp.AddElement("volume", "volume", "Filter/Effect", el)
	msg := <-fp.Messages()
	if err := r.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if !executed {
		t.Error("expected the on-addition action to execute once its target element appeared")
	}
	if len(sc.OnAdditionActions()) != 0 {
		t.Error("expected the matched action to be removed from the on-addition queue")
	}
}

func TestHandleElementAdded_LeavesNonMatchingActionQueued(t *testing.T) {
	sc, fp := newTestScenario(t)
	reg := action.NewRegistry()

	typ := reg.Register(&action.Type{
		Name:  "set-property",
		Flags: action.FlagCanExecuteOnAddition,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			t.Fatal("should not execute: target element never appears")
			return action.StateOK, nil
		},
	})
	pending := action.NewAction(1, typ, map[string]any{"target-element-name": "nope"})
	pending.Scenario = sc
	sc.QueueOnAddition(pending)

	r := New(sc, reg)

	el := pipeline.NewFakeElement("volume", "volume", "Filter/Effect")
	fp.AddElement("volume", "volume", "Filter/Effect", el)
	msg := <-fp.Messages()
	if err := r.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if len(sc.OnAdditionActions()) != 1 {
		t.Error("expected the non-matching action to remain queued")
	}
}
