package action

import (
	"sync"
	"time"

	"scenengine/internal/pipeline"
	"scenengine/internal/report"
	"scenengine/internal/vars"
)

// Scenario owns the three action queues and the derived playback state.
type Scenario struct {
	mu sync.Mutex // guards the three queues

	actions           []*Action // main queue, ordered, playback-timed
	interlacedActions []*Action // running in parallel
	onAdditionActions []*Action // waiting for matching element creation

	Vars *vars.Store

	SegmentStart   time.Duration
	SegmentStop    time.Duration
	SeekFlags      pipeline.SeekFlags
	SeekedInPause  bool
	lastSeek       *pipeline.SeekRequest

	TargetState    pipeline.State
	ChangingState  bool
	NeedsAsyncDone bool
	Buffering      bool
	GotEOS         bool

	PendingSwitchTrack *Action

	Dropped    int
	MaxDropped int
	MaxLatency time.Duration

	ActionExecutionInterval time.Duration

	Overrides map[report.Code]report.Level

	HandlesState bool
	Pipeline     pipeline.Pipeline
	Reporter     report.Reporter

	// completions is the cross-thread hand-off channel for set_done: a
	// handler-owned goroutine posts an action number here instead of
	// mutating state directly.
	completions chan int

	// restoreRequests carries deferred SetState requests (pause's
	// duration expiry, so far) from a timer goroutine to the main loop,
	// the same handoff shape as completions, so TargetState/ChangingState
	// are only ever touched from the dispatch goroutine.
	restoreRequests chan pipeline.State

	Name         string
	Summary      string
	PipelineName string

	// Fields sourced from the "description" structure.
	NeedClockSync   bool
	ReversePlayback bool
	MinMediaDuration time.Duration
	MinAudioTrack   int
	MinVideoTrack   int
	RequiresSeek    bool
	DebugThreshold  string
	DumpDotDir      string

	// waitingMessageType/waitingAction implement the "wait, message-type=..."
	// handler's registration: the reactor's default case matches
	// an observed message type against this and set_dones the action.
	waitingMessageType pipeline.MessageType
	waitingAction       *Action
}

// NewScenario creates an empty Scenario with sane defaults.
func NewScenario(reporter report.Reporter) *Scenario {
	return &Scenario{
		Vars:                    vars.NewStore(),
		ActionExecutionInterval: 10 * time.Millisecond,
		Overrides:               make(map[report.Code]report.Level),
		completions:             make(chan int, 64),
		restoreRequests:         make(chan pipeline.State, 8),
		Reporter:                reporter,
	}
}

// SetDone is the only thread-safe cross-thread API: it marks
// pending_set_done and posts the action number for the main loop to pick
// up. Safe to call from any goroutine, including after Finalize (the send
// is best-effort and silently dropped if the channel is full/closed).
func (s *Scenario) SetDone(a *Action) {
	if s == nil || a == nil {
		return
	}
	a.PendingSetDone = true
	defer func() { recover() }() // channel may be closed by Finalize
	select {
	case s.completions <- a.ActionNumber:
	default:
	}
}

// Completions exposes the channel the dispatcher polls for set_done
// notifications.
func (s *Scenario) Completions() <-chan int {
	return s.completions
}

// RequestStateRestore posts a deferred SetState request for the main loop
// to apply once it next polls, mirroring SetDone: safe to call from any
// goroutine, best-effort, silently dropped once Finalize has closed the
// channel.
func (s *Scenario) RequestStateRestore(target pipeline.State) {
	if s == nil {
		return
	}
	defer func() { recover() }()
	select {
	case s.restoreRequests <- target:
	default:
	}
}

// RestoreRequests exposes the channel the dispatcher polls for deferred
// SetState requests.
func (s *Scenario) RestoreRequests() <-chan pipeline.State {
	return s.restoreRequests
}

// Finalize drops all three queues and closes the completions and
// restoreRequests channels; any pending callback will find its channel
// closed and no-op.
func (s *Scenario) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = nil
	s.interlacedActions = nil
	s.onAdditionActions = nil
	close(s.completions)
	close(s.restoreRequests)
}

// ClearQueues empties all three action queues, the way end-of-stream
// abandons whatever was still pending rather than letting the dispatcher
// spin on a queue that will never drain on its own.
func (s *Scenario) ClearQueues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = nil
	s.interlacedActions = nil
	s.onAdditionActions = nil
}

func (s *Scenario) LastSeek() (pipeline.SeekRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSeek == nil {
		return pipeline.SeekRequest{}, false
	}
	return *s.lastSeek, true
}

func (s *Scenario) RecordSeek(req pipeline.SeekRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeek = &req
	s.SeekFlags = req.Flags
	if req.StartType == pipeline.SeekTypeSet {
		s.SegmentStart = req.Start
	}
	if req.StopType == pipeline.SeekTypeSet {
		s.SegmentStop = req.Stop
	}
}

// --- Main queue -----------------------------------------------------

func (s *Scenario) QueueMain(a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Scenario = s
	s.actions = append(s.actions, a)
}

func (s *Scenario) QueueOnAddition(a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Scenario = s
	s.onAdditionActions = append(s.onAdditionActions, a)
}

func (s *Scenario) QueueInterlaced(a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Scenario = s
	s.interlacedActions = append(s.interlacedActions, a)
}

// Head returns the first pending main-queue action, or nil if empty.
func (s *Scenario) Head() *Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actions) == 0 {
		return nil
	}
	return s.actions[0]
}

// PopHead removes the current head action from the main queue.
func (s *Scenario) PopHead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actions) == 0 {
		return
	}
	s.actions = s.actions[1:]
}

// MainQueueLen returns the number of actions still pending in the main
// queue.
func (s *Scenario) MainQueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// RemainingMainActions returns a snapshot of the still-pending main-queue
// actions, for the EOS "not ended" check.
func (s *Scenario) RemainingMainActions() []*Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Action, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Scenario) InterlacedActions() []*Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Action, len(s.interlacedActions))
	copy(out, s.interlacedActions)
	return out
}

// RemoveInterlaced drops a completed interlaced action from the parallel
// queue.
func (s *Scenario) RemoveInterlaced(a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.interlacedActions {
		if cur == a {
			s.interlacedActions = append(s.interlacedActions[:i], s.interlacedActions[i+1:]...)
			return
		}
	}
}

func (s *Scenario) OnAdditionActions() []*Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Action, len(s.onAdditionActions))
	copy(out, s.onAdditionActions)
	return out
}

// RemoveOnAddition drops an action from the on-addition queue once its
// target element has appeared and it has been executed (or failed to
// prepare or execute).
func (s *Scenario) RemoveOnAddition(a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.onAdditionActions {
		if cur == a {
			s.onAdditionActions = append(s.onAdditionActions[:i], s.onAdditionActions[i+1:]...)
			return
		}
	}
}

// CompleteAction implements the main-loop half of the deferred set_done
// handshake: it finds the action by number in either the main
// queue's head or the interlaced queue and transitions it to OK. Interlaced
// actions that are now Done() are removed from the parallel queue; the
// caller does not need to do so itself.
func (s *Scenario) CompleteAction(number int) *Action {
	s.mu.Lock()
	var found *Action
	if len(s.actions) > 0 && s.actions[0].ActionNumber == number {
		found = s.actions[0]
	}
	var fromInterlaced bool
	if found == nil {
		for _, a := range s.interlacedActions {
			if a.ActionNumber == number {
				found = a
				fromInterlaced = true
				break
			}
		}
	}
	s.mu.Unlock()

	if found == nil {
		return nil
	}
	found.setState(StateOK)
	found.PendingSetDone = false
	if fromInterlaced && found.Done() {
		s.RemoveInterlaced(found)
	}
	return found
}

// WaitForMessage registers a pending action against the bus reactor's
// message-type wait, so the next matching message completes it.
func (s *Scenario) WaitForMessage(t pipeline.MessageType, a *Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitingMessageType = t
	s.waitingAction = a
}

// MatchMessageWait consumes the pending message-type wait if it matches t,
// returning the action to complete.
func (s *Scenario) MatchMessageWait(t pipeline.MessageType) (*Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitingAction == nil || s.waitingMessageType != t {
		return nil, false
	}
	a := s.waitingAction
	s.waitingAction = nil
	s.waitingMessageType = ""
	return a, true
}

// report is a small convenience wrapper so scenario-owned code (the
// reactor, mostly) doesn't need to nil-check Reporter everywhere.
func (s *Scenario) report(level report.Level, code report.Code, message string) {
	if s.Reporter == nil {
		return
	}
	if override, ok := s.Overrides[code]; ok {
		level = override
	}
	s.Reporter.Report(report.Event{Level: level, Code: code, Message: message})
}

// Report is the exported form of report, used by the dispatcher and
// reactor packages.
func (s *Scenario) Report(level report.Level, code report.Code, message string) {
	s.report(level, code, message)
}
