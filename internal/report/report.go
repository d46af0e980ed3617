// Package report implements the reporting adapter: it turns
// internal errors and invariant violations into report events, applies
// per-reporter severity overrides, and fans them out to one or more
// sinks, using a buffered-channel-plus-goroutine collector and a
// mutex-guarded writer.
package report

import (
	"fmt"
	"io"
	"sync"
)

// Level is the severity of a report event. Ordered low to high so a
// fatality flag can compare with >=.
type Level int

const (
	LevelInfo Level = iota
	LevelIssue
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelIssue:
		return "issue"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Code identifies a report kind, mapped 1-to-1 onto the error
// taxonomy.
type Code string

const (
	CodeScenarioFileMalformed       Code = "scenario-file-malformed"
	CodeUnknownActionType           Code = "unknown-action-type"
	CodeMissingMandatoryField       Code = "missing-mandatory-field"
	CodeIncludeNotFound             Code = "include-not-found"
	CodeMultipleActionScenarios     Code = "multiple-action-scenarios"
	CodeScenarioActionExecutionErr  Code = "scenario-action-execution-error"
	CodeScenarioActionTimeout       Code = "scenario-action-timeout"
	CodeStateChangeFailure          Code = "state-change-failure"
	CodeQueryPositionOutOfSegment   Code = "query-position-out-of-segment"
	CodeQueryPositionSuperiorDur    Code = "query-position-superior-duration"
	CodeEventSeekResultPositionBad  Code = "event-seek-result-position-wrong"
	CodeEventSeekNotHandled         Code = "event-seek-not-handled"
	CodeConfigLatencyTooHigh        Code = "config-latency-too-high"
	CodeConfigTooManyBuffersDropped Code = "config-too-many-buffers-dropped"
	CodeScenarioNotEnded            Code = "scenario-not-ended"
)

// Event is a single report occurrence.
type Event struct {
	Level        Level
	Code         Code
	Message      string
	Trace        string
	ActionNumber int // 0 when not tied to a specific action
}

// Reporter is the sink the rest of the engine reports through, with a
// per-code severity override hook.
type Reporter interface {
	Report(evt Event)
	OverrideSeverity(code Code, level Level)
}

// Sink receives formatted report lines. Concrete sinks wrap os.Stdout,
// os.Stderr or a file, per the OUTPUT_FILES environment variable.
type Sink interface {
	io.Writer
}

// Collector is the default Reporter: it buffers events on a channel,
// drains them on its own goroutine, applies severity overrides, and
// writes formatted lines to every configured sink.
type Collector struct {
	mu        sync.Mutex
	overrides map[Code]Level
	sinks     []Sink
	events    chan Event
	done      chan struct{}
	history   []Event
	histMu    sync.Mutex
}

// NewCollector creates a Collector writing to the given sinks and starts
// its draining goroutine.
func NewCollector(sinks ...Sink) *Collector {
	c := &Collector{
		overrides: make(map[Code]Level),
		sinks:     sinks,
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
	}
	go c.drain()
	return c
}

func (c *Collector) drain() {
	for evt := range c.events {
		c.histMu.Lock()
		c.history = append(c.history, evt)
		c.histMu.Unlock()

		line := fmt.Sprintf("[%s] %s: %s\n", evt.Level, evt.Code, evt.Message)
		c.mu.Lock()
		for _, s := range c.sinks {
			_, _ = s.Write([]byte(line))
		}
		c.mu.Unlock()
	}
	close(c.done)
}

// Report applies any severity override then enqueues the event. Never
// blocks the caller past the channel buffer.
func (c *Collector) Report(evt Event) {
	c.mu.Lock()
	if lvl, ok := c.overrides[evt.Code]; ok {
		evt.Level = lvl
	}
	c.mu.Unlock()

	select {
	case c.events <- evt:
	default:
		// Buffer full: drop rather than block the main loop. A dropped
		// report is itself visible via History() gaps during tests.
	}
}

// OverrideSeverity registers a per-code severity override.
func (c *Collector) OverrideSeverity(code Code, level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[code] = level
}

// Close stops accepting new events and waits for the drain goroutine to
// flush the ones already buffered.
func (c *Collector) Close() {
	close(c.events)
	<-c.done
}

// History returns every event reported so far, for tests and the CLI's
// end-of-run summary.
func (c *Collector) History() []Event {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	out := make([]Event, len(c.history))
	copy(out, c.history)
	return out
}

// FatalityFlags mirrors the FLAGS environment variable's fatal_* keys
//: when set, a report at or above the matching level should
// abort the running scenario.
type FatalityFlags struct {
	FatalIssues    bool
	FatalWarnings  bool
	FatalCriticals bool
}

// IsFatal reports whether evt should abort the scenario under these flags.
func (f FatalityFlags) IsFatal(level Level) bool {
	switch level {
	case LevelIssue:
		return f.FatalIssues
	case LevelWarning:
		return f.FatalIssues || f.FatalWarnings
	case LevelCritical:
		return f.FatalIssues || f.FatalWarnings || f.FatalCriticals
	default:
		return false
	}
}
