// Package dispatcher implements the scenario engine's main-loop scheduler
//: it decides when the head of the main queue is eligible to
// fire, executes it, and recurses or yields back to the caller depending
// on whether the action completed synchronously.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
	"scenengine/internal/ratelimit"
	"scenengine/internal/report"
)

// DefaultSeekPosTolerance is the position-gate tolerance applied around
// segment_start/segment_stop.
const DefaultSeekPosTolerance = time.Millisecond

// Dispatcher owns the re-arm pacing for one Scenario's main loop. It holds
// no queue state of its own; the Scenario is authoritative.
type Dispatcher struct {
	Scenario     *action.Scenario
	SeekPosTol   time.Duration
	pacer        *ratelimit.IntervalPacer
	mu           sync.Mutex
	taskInFlight bool
}

// New creates a Dispatcher paced by the scenario's ActionExecutionInterval,
// defaulting to 10ms when unset.
func New(sc *action.Scenario) *Dispatcher {
	interval := sc.ActionExecutionInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &Dispatcher{
		Scenario:   sc,
		SeekPosTol: DefaultSeekPosTolerance,
		pacer:      ratelimit.NewIntervalPacer(interval),
	}
}

// Run drives the main queue to completion or until ctx is cancelled. It
// enforces a single-outstanding-task guarantee: at most one dispatch
// attempt runs at a time, paced by the rate limiter when nothing
// advanced synchronously, and woken early by set_done completions posted
// on the scenario's completions channel.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Scenario.MainQueueLen() == 0 {
			return nil
		}

		advanced, err := d.Tick(ctx)
		if err != nil {
			return err
		}
		if advanced {
			continue // synchronous completion: recurse immediately
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case number, ok := <-d.Scenario.Completions():
			if !ok {
				return nil
			}
			d.Scenario.CompleteAction(number)
			continue
		case target, ok := <-d.Scenario.RestoreRequests():
			if !ok {
				return nil
			}
			d.applyStateRestore(target)
			continue
		default:
		}

		// Nothing woke us early: re-arm at action_execution_interval,
		// paced by the limiter rather than a bare timer so a scenario
		// with interval=0 ("dispatch when idle") still yields briefly
		// instead of busy-looping.
		if err := d.pacer.Wait(ctx); err != nil {
			return err
		}
	}
}

// Tick attempts to advance the head of the main queue exactly once. It
// returns advanced=true when the head action completed synchronously and
// the caller should immediately retry.
func (d *Dispatcher) Tick(ctx context.Context) (advanced bool, err error) {
	d.mu.Lock()
	if d.taskInFlight {
		d.mu.Unlock()
		return false, nil
	}
	d.taskInFlight = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.taskInFlight = false
		d.mu.Unlock()
	}()

	sc := d.Scenario

	if sc.Buffering {
		return false, nil // gate 1: buffering blocks all dispatch.
	}
	if sc.ChangingState || sc.NeedsAsyncDone {
		return false, nil // gate 2.
	}

	head := sc.Head()
	if head == nil {
		return false, nil
	}

	if head.State() == action.StateInProgress {
		return false, nil // gate 3.
	}

	if head.State() == action.StateAsync {
		if head.Timeout != nil && !head.ExecutionTime.IsZero() {
			if time.Since(head.ExecutionTime) > *head.Timeout {
				sc.Report(report.LevelWarning, report.CodeScenarioActionTimeout,
					fmt.Sprintf("action %d (%s) timed out after %s", head.ActionNumber, head.Type.Name, *head.Timeout))
			}
		}
		return false, nil // gate 4: wait, do not pop.
	}

	if head.Done() {
		sc.PopHead()
		return true, nil // gate 5: pop and let the caller re-tick the new head.
	}
	if head.State() == action.StateOK {
		if rerun := head.AdvanceAfterOK(); rerun {
			return d.execute(ctx, head)
		}
		sc.PopHead()
		return true, nil
	}

	if blocked, gateErr := d.positionGate(head); gateErr != nil {
		return false, gateErr
	} else if blocked {
		return false, nil
	}

	if !d.executionGate(head) {
		return false, nil
	}

	return d.execute(ctx, head)
}

// positionGate implements the segment/duration/seek-result checks.
// It never blocks execution by itself (all three checks are observational:
// they never stop the scenario on their own) but it does report violations.
func (d *Dispatcher) positionGate(head *action.Action) (blocked bool, err error) {
	sc := d.Scenario
	if sc.Pipeline == nil {
		return false, nil
	}
	pos, ok, perr := sc.Pipeline.Position()
	if perr != nil {
		return false, perr
	}
	if !ok {
		return false, nil
	}

	if sc.SeekFlags.Has(pipeline.SeekFlagAccurate) {
		if pos < sc.SegmentStart-d.SeekPosTol {
			sc.Report(report.LevelIssue, report.CodeQueryPositionOutOfSegment,
				fmt.Sprintf("position %s below segment start %s", pos, sc.SegmentStart))
		}
	}
	if sc.SegmentStop > 0 && pos > sc.SegmentStop+d.SeekPosTol {
		sc.Report(report.LevelIssue, report.CodeQueryPositionOutOfSegment,
			fmt.Sprintf("position %s above segment stop %s", pos, sc.SegmentStop))
	}

	if dur, ok := sc.Pipeline.Duration(); ok && pos > dur {
		sc.Report(report.LevelIssue, report.CodeQueryPositionSuperiorDur,
			fmt.Sprintf("position %s exceeds duration %s", pos, dur))
	}

	if sc.SeekedInPause {
		if diff := pos - sc.SegmentStart; diff > d.SeekPosTol || diff < -d.SeekPosTol {
			sc.Report(report.LevelIssue, report.CodeEventSeekResultPositionBad,
				fmt.Sprintf("expected position %s after paused seek, got %s", sc.SegmentStart, pos))
		}
	}

	return false, nil
}

// executionGate implements the "run when any of ..." disjunction.
func (d *Dispatcher) executionGate(head *action.Action) bool {
	sc := d.Scenario

	if sc.Pipeline == nil {
		return head.Type == nil || head.Type.Flags.Has(action.FlagDoesntNeedPipeline)
	}

	if sc.GotEOS {
		sc.GotEOS = false
		return true
	}

	if sc.Pipeline.State() < pipeline.StatePaused {
		return true
	}

	if head.PlaybackTime == nil {
		return true
	}

	pos, ok, err := sc.Pipeline.Position()
	if err != nil || !ok {
		return false
	}

	playRate := sc.Pipeline.Rate()
	switch {
	case playRate > 0:
		return pos >= *head.PlaybackTime
	case playRate < 0:
		return pos <= *head.PlaybackTime
	default:
		return pos >= *head.PlaybackTime
	}
}

// execute runs prepare then the type's Execute handler, translating the
// returned state into the action's lifecycle transition.
func (d *Dispatcher) execute(ctx context.Context, a *action.Action) (advanced bool, err error) {
	sc := d.Scenario

	refreshPositionDuration(sc)

	if a.NeedsPlaybackParsing {
		if resolved, ok := resolveDeferredPlaybackTime(a, sc); ok {
			a.PlaybackTime = &resolved
			a.NeedsPlaybackParsing = false
		}
	}

	if perr := a.Prepare(ctx); perr != nil {
		sc.Report(report.LevelCritical, report.CodeScenarioActionExecutionErr,
			fmt.Sprintf("action %d (%s) prepare failed: %v", a.ActionNumber, a.Type.Name, perr))
		sc.PopHead()
		return true, nil
	}

	a.ExecutionTime = time.Now()

	if a.Type == nil || a.Type.Execute == nil {
		sc.PopHead()
		return true, nil
	}

	state, herr := a.Type.Execute(ctx, a)
	if herr != nil {
		level := report.LevelCritical
		if a.Optional || a.Type.Flags.Has(action.FlagNoExecutionNotFatal) {
			level = report.LevelIssue
		}
		sc.Report(level, report.CodeScenarioActionExecutionErr,
			fmt.Sprintf("action %d (%s): %v", a.ActionNumber, a.Type.Name, herr))
		sc.PopHead()
		return true, nil
	}

	a.SetState(state)

	switch state {
	case action.StateOK:
		if rerun := a.AdvanceAfterOK(); rerun {
			return d.execute(ctx, a)
		}
		sc.PopHead()
		return true, nil
	case action.StateAsync:
		return false, nil
	case action.StateInterlaced:
		sc.PopHead()
		sc.QueueInterlaced(a)
		return true, nil
	default:
		sc.PopHead()
		return true, nil
	}
}

// applyStateRestore performs a deferred SetState request (pause's
// duration expiry) on the dispatch goroutine, since Tick's gate 2 reads
// TargetState/ChangingState unsynchronized.
func (d *Dispatcher) applyStateRestore(target pipeline.State) {
	sc := d.Scenario
	if sc.Pipeline == nil || sc.Pipeline.State() == target {
		return
	}
	if err := sc.Pipeline.SetState(target); err != nil {
		sc.Report(report.LevelCritical, report.CodeStateChangeFailure,
			fmt.Sprintf("deferred restore to %s failed: %v", target, err))
		return
	}
	sc.TargetState = target
	sc.ChangingState = true
	sc.NeedsAsyncDone = true
}

// refreshPositionDuration recomputes the position/duration pseudo-variables
// from the live pipeline right before a field-substitution pass, so an
// expression like playback-time="position+1" resolves against where
// playback actually is rather than a stale or zero value.
func refreshPositionDuration(sc *action.Scenario) {
	if sc.Pipeline == nil {
		sc.Vars.RefreshPositionDuration(nil, nil)
		return
	}
	var posSecs, durSecs *float64
	if pos, ok, err := sc.Pipeline.Position(); err == nil && ok {
		v := pos.Seconds()
		posSecs = &v
	}
	if dur, ok := sc.Pipeline.Duration(); ok {
		v := dur.Seconds()
		durSecs = &v
	}
	sc.Vars.RefreshPositionDuration(posSecs, durSecs)
}

// resolveDeferredPlaybackTime re-evaluates a string playback-time
// expression once the position/duration pseudo-variables are known.
func resolveDeferredPlaybackTime(a *action.Action, sc *action.Scenario) (time.Duration, bool) {
	if sc.Pipeline == nil {
		return 0, false
	}
	if _, ok := sc.Pipeline.Duration(); !ok {
		return 0, false
	}
	d, err := action.ResolveDuration(a.PlaybackTimeExpr, sc.Vars.Lookup)
	if err != nil {
		sc.Report(report.LevelCritical, report.CodeScenarioActionExecutionErr,
			fmt.Sprintf("action %d (%s): deferred playback-time %q: %v", a.ActionNumber, a.Type.Name, a.PlaybackTimeExpr, err))
		return 0, false
	}
	return d, true
}
