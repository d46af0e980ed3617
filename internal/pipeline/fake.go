package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FakeElement is an in-memory Element used by tests, modeled on the
// teacher's testserver fake HTTP backend: a small stateful stand-in that
// lets the engine's own logic be exercised without the real collaborator.
type FakeElement struct {
	mu         sync.Mutex
	name       string
	factory    string
	class      string
	properties map[string]any
	signals    map[string]func(args ...any) (any, error)
	flushed    []bool
}

func NewFakeElement(name, factory, class string) *FakeElement {
	return &FakeElement{
		name:       name,
		factory:    factory,
		class:      class,
		properties: make(map[string]any),
		signals:    make(map[string]func(args ...any) (any, error)),
	}
}

func (e *FakeElement) Name() string { return e.name }

func (e *FakeElement) SetProperty(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.properties[name] = value
	return nil
}

func (e *FakeElement) GetProperty(name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.properties[name]
	if !ok {
		return nil, fmt.Errorf("property %q not set", name)
	}
	return v, nil
}

func (e *FakeElement) OnSignal(name string, fn func(args ...any) (any, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals[name] = fn
}

func (e *FakeElement) EmitSignal(name string, args ...any) (any, error) {
	e.mu.Lock()
	fn, ok := e.signals[name]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such signal %q on element %q", name, e.name)
	}
	return fn(args...)
}

func (e *FakeElement) SendFlush(resetTime bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushed = append(e.flushed, resetTime)
	return nil
}

func (e *FakeElement) FlushCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.flushed)
}

// FakePipeline is a scriptable in-memory Pipeline for dispatcher/reactor
// tests: position and state are set directly by the test, and Seek/SetState
// calls are recorded rather than driving any real media path.
type FakePipeline struct {
	mu       sync.Mutex
	pos      time.Duration
	posKnown bool
	dur      time.Duration
	durKnown bool
	rate     float64
	state    State
	target   State
	latency  time.Duration
	dropped  int

	elementsByName    map[string]Element
	elementsByFactory map[string]Element
	elementsByClass   map[string]Element
	elementsByCaps    map[string]Element

	seeks    []SeekRequest
	eosCount int
	messages chan Message
}

func NewFakePipeline() *FakePipeline {
	return &FakePipeline{
		rate:              1.0,
		elementsByName:    make(map[string]Element),
		elementsByFactory: make(map[string]Element),
		elementsByClass:   make(map[string]Element),
		elementsByCaps:    make(map[string]Element),
		messages:          make(chan Message, 64),
	}
}

// AddElement registers an element and, mirroring a bin's real
// "element-added" signal, posts an element-added bus message so anything
// waiting on the on-addition queue gets a chance to run against it.
func (p *FakePipeline) AddElement(name, factory, class string, el Element) {
	p.mu.Lock()
	p.elementsByName[name] = el
	if factory != "" {
		p.elementsByFactory[factory] = el
	}
	if class != "" {
		p.elementsByClass[class] = el
	}
	p.mu.Unlock()

	payload, _ := json.Marshal(map[string]any{"name": name})
	select {
	case p.messages <- Message{Type: MessageElementAdded, Payload: payload}:
	default:
	}
}

// SetSinkCaps associates a previously added element's current sink pad
// caps, the fake stand-in for gst_pad_get_current_caps: a sink registered
// this way becomes resolvable through FindElementBySinkCaps by that exact
// caps string.
func (p *FakePipeline) SetSinkCaps(name, caps string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elementsByName[name]; ok {
		p.elementsByCaps[caps] = el
	}
}

func (p *FakePipeline) SetPosition(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos, p.posKnown = d, true
}

func (p *FakePipeline) SetDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dur, p.durKnown = d, true
}

func (p *FakePipeline) SetRate(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = r
}

func (p *FakePipeline) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

func (p *FakePipeline) SetDropped(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = n
}

func (p *FakePipeline) Push(msg Message) {
	p.messages <- msg
}

func (p *FakePipeline) Close() { close(p.messages) }

func (p *FakePipeline) Position() (time.Duration, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.posKnown, nil
}

func (p *FakePipeline) Duration() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dur, p.durKnown
}

func (p *FakePipeline) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *FakePipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *FakePipeline) TargetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *FakePipeline) SetState(s State) error {
	p.mu.Lock()
	p.target = s
	p.mu.Unlock()
	return nil
}

// SettleState is called by the test to simulate the pipeline finishing an
// asynchronous state change.
func (p *FakePipeline) SettleState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *FakePipeline) Seek(req SeekRequest) error {
	p.mu.Lock()
	p.seeks = append(p.seeks, req)
	p.mu.Unlock()
	return nil
}

func (p *FakePipeline) SeekCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seeks)
}

func (p *FakePipeline) LastSeek() (SeekRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.seeks) == 0 {
		return SeekRequest{}, false
	}
	return p.seeks[len(p.seeks)-1], true
}

func (p *FakePipeline) SendEOS() error {
	p.mu.Lock()
	p.eosCount++
	p.mu.Unlock()
	return nil
}

func (p *FakePipeline) Latency() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latency, nil
}

func (p *FakePipeline) DroppedBuffers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *FakePipeline) FindElement(name string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elementsByName[name]
	return e, ok
}

func (p *FakePipeline) FindElementByFactory(factory string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elementsByFactory[factory]
	return e, ok
}

func (p *FakePipeline) FindElementByClass(class string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elementsByClass[class]
	return e, ok
}

// FindElementBySinkCaps looks up an element by exact match against its
// registered current sink caps, a simplification of gst_caps_can_intersect
// suited to this fake's scripted rather than negotiated caps.
func (p *FakePipeline) FindElementBySinkCaps(caps string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elementsByCaps[caps]
	return e, ok
}

func (p *FakePipeline) Messages() <-chan Message {
	return p.messages
}

func (p *FakePipeline) DumpDot(name, dir string) error {
	return nil
}
