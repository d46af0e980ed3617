package dispatcher

import (
	"context"
	"testing"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/report"
)

func newTestScenario(t *testing.T) (*action.Scenario, *pipeline.FakePipeline) {
	t.Helper()
	sc := action.NewScenario(report.NewCollector())
	fp := pipeline.NewFakePipeline()
	sc.Pipeline = fp
	fp.SettleState(pipeline.StatePlaying)
	return sc, fp
}

func registerImmediateOK(reg *action.Registry, name string) *action.Type {
	return reg.Register(&action.Type{
		Name: name,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateOK, nil
		},
	})
}

func TestTick_ExecutesEligibleHeadSynchronously(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(0)
	reg := action.NewRegistry()
	typ := registerImmediateOK(reg, "set-state")

	a := action.NewAction(1, typ, map[string]any{})
	sc.QueueMain(a)

	d := New(sc)
	advanced, err := d.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !advanced {
		t.Fatal("expected a synchronous OK completion to report advanced=true")
	}
	if sc.MainQueueLen() != 0 {
		t.Fatalf("expected the completed action to be popped, queue len = %d", sc.MainQueueLen())
	}
}

func TestTick_WaitsOnFuturePlaybackTime(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(0)
	reg := action.NewRegistry()
	typ := registerImmediateOK(reg, "set-state")

	future := 10 * time.Second
	a := action.NewAction(1, typ, map[string]any{})
	a.PlaybackTime = &future
	sc.QueueMain(a)

	d := New(sc)
	advanced, err := d.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if advanced {
		t.Fatal("expected the dispatcher to wait for playback-time")
	}
	if sc.MainQueueLen() != 1 {
		t.Fatalf("expected the action still queued, got %d", sc.MainQueueLen())
	}
}

func TestTick_FiresOncePlaybackTimeReached(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(5 * time.Second)
	reg := action.NewRegistry()
	typ := registerImmediateOK(reg, "set-state")

	target := 5 * time.Second
	a := action.NewAction(1, typ, map[string]any{})
	a.PlaybackTime = &target
	sc.QueueMain(a)

	d := New(sc)
	advanced, err := d.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !advanced {
		t.Fatal("expected the action to fire once position reaches playback-time")
	}
}

func TestTick_BuffersBlockDispatch(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(0)
	sc.Buffering = true
	reg := action.NewRegistry()
	typ := registerImmediateOK(reg, "set-state")
	sc.QueueMain(action.NewAction(1, typ, map[string]any{}))

	d := New(sc)
	advanced, err := d.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if advanced {
		t.Fatal("expected buffering to block dispatch")
	}
}

func TestTick_AsyncActionWaitsForCompletion(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(0)
	reg := action.NewRegistry()
	typ := reg.Register(&action.Type{
		Name: "seek",
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateAsync, nil
		},
	})
	a := action.NewAction(1, typ, map[string]any{})
	sc.QueueMain(a)

	d := New(sc)
	if _, err := d.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sc.Head().State() != action.StateAsync {
		t.Fatalf("expected head state ASYNC, got %s", sc.Head().State())
	}

	advanced, err := d.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if advanced {
		t.Fatal("expected the dispatcher not to advance while ASYNC is outstanding")
	}

	sc.CompleteAction(a.ActionNumber)
	advanced, err = d.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !advanced {
		t.Fatal("expected the completed async action to be popped")
	}
	if sc.MainQueueLen() != 0 {
		t.Fatalf("expected queue drained, got %d", sc.MainQueueLen())
	}
}

func TestApplyStateRestore_SetsTargetAndFlags(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SettleState(pipeline.StatePaused)
	sc.TargetState = pipeline.StatePaused

	d := New(sc)
	d.applyStateRestore(pipeline.StatePlaying)

	if fp.TargetState() != pipeline.StatePlaying {
		t.Fatalf("expected pipeline target state PLAYING, got %s", fp.TargetState())
	}
	if sc.TargetState != pipeline.StatePlaying {
		t.Fatalf("expected scenario target state PLAYING, got %s", sc.TargetState)
	}
	if !sc.ChangingState || !sc.NeedsAsyncDone {
		t.Fatal("expected ChangingState and NeedsAsyncDone to be set")
	}
}

func TestRun_AppliesDeferredStateRestoreFromAnotherGoroutine(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SettleState(pipeline.StatePaused)
	sc.TargetState = pipeline.StatePaused
	sc.ActionExecutionInterval = time.Millisecond

	reg := action.NewRegistry()
	typ := reg.Register(&action.Type{
		Name: "wait",
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateAsync, nil
		},
	})
	a := action.NewAction(1, typ, map[string]any{})
	sc.QueueMain(a)

	d := New(sc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	go sc.RequestStateRestore(pipeline.StatePlaying)

	deadline := time.After(time.Second)
	for fp.TargetState() != pipeline.StatePlaying {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the deferred restore to apply")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestTick_RepeatRequeuesAction(t *testing.T) {
	sc, fp := newTestScenario(t)
	fp.SetPosition(0)
	runs := 0
	reg := action.NewRegistry()
	typ := reg.Register(&action.Type{
		Name: "pause",
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			runs++
			return action.StateOK, nil
		},
	})
	a := action.NewAction(1, typ, map[string]any{})
	a.Repeat = 2
	sc.QueueMain(a)

	d := New(sc)
	for sc.MainQueueLen() > 0 {
		if _, err := d.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if runs != 3 {
		t.Fatalf("expected 3 executions (initial + 2 repeats), got %d", runs)
	}
}
