package action

import (
	"time"
)

// Action is a single scripted operation.
type Action struct {
	Type *Type

	Structure     map[string]any
	MainStructure map[string]any

	// mainType is the type resolved when the action was loaded. A
	// sub-action may name a different action type than its parent, so
	// popping one swaps Type as well as Structure; mainType is what
	// RestoreMainStructure puts back for the next repeat iteration.
	mainType *Type

	// subActions is a stack of pending sub-actions, represented as a
	// stack on the action record rather than by swapping Structure in
	// place, so the parent can be restored without a copy round-trip.
	subActions []subAction

	PlaybackTime          *time.Duration
	PlaybackTimeExpr      string
	NeedsPlaybackParsing  bool

	Timeout *time.Duration

	Repeat int // -1 means "not set"

	ActionNumber int

	state State

	Printed                bool
	Optional               bool
	ExecutingLastSubaction bool
	PendingSetDone         bool

	ExecutionTime time.Time

	// Scenario is a back-pointer to the owning Scenario. It is documented
	// as a weak relation: Actions do not keep the Scenario
	// alive, and code reading it after Scenario.Finalize must tolerate nil.
	Scenario *Scenario
}

// NewAction constructs an Action from its loaded structure. The caller is
// expected to have resolved Type already.
func NewAction(number int, t *Type, structure map[string]any) *Action {
	main := make(map[string]any, len(structure))
	for k, v := range structure {
		main[k] = v
	}
	return &Action{
		Type:          t,
		mainType:      t,
		Structure:     structure,
		MainStructure: main,
		Repeat:        -1,
		ActionNumber:  number,
		state:         StateNone,
	}
}

// subAction pairs a nested action's resolved type with its parsed
// structure. Type is nil when the sub-action runs under the parent's own
// type, only swapping the field values.
type subAction struct {
	Type      *Type
	Structure map[string]any
}

func (a *Action) State() State { return a.state }

func (a *Action) setState(s State) { a.state = s }

// SetState is the exported form of setState, used by the dispatcher to
// record the lifecycle transition a handler's return value implies.
func (a *Action) SetState(s State) { a.state = s }

// PushSubAction records a nested action to run after the parent's
// synchronous phase. t is nil when the sub-action only replaces the field
// values and keeps running under the parent's own type.
func (a *Action) PushSubAction(t *Type, structure map[string]any) {
	a.subActions = append(a.subActions, subAction{Type: t, Structure: structure})
}

// HasPendingSubAction reports whether a sub-action is queued.
func (a *Action) HasPendingSubAction() bool {
	return len(a.subActions) > 0
}

// PopSubAction returns and removes the next sub-action structure,
// replacing Structure (and Type, if the sub-action named one) with it as
// the working copy.
func (a *Action) PopSubAction() map[string]any {
	n := len(a.subActions)
	next := a.subActions[n-1]
	a.subActions = a.subActions[:n-1]
	a.Structure = next.Structure
	if next.Type != nil {
		a.Type = next.Type
	}
	a.ExecutingLastSubaction = len(a.subActions) == 0
	return next.Structure
}

// RestoreMainStructure resets Structure to a fresh copy of MainStructure
// and Type to the type resolved at load time, as required before each
// repeat iteration (a preceding sub-action may have swapped both).
func (a *Action) RestoreMainStructure() {
	fresh := make(map[string]any, len(a.MainStructure))
	for k, v := range a.MainStructure {
		fresh[k] = v
	}
	a.Structure = fresh
	a.Type = a.mainType
}

// Field reads a structure field from the working copy.
func (a *Action) Field(name string) (any, bool) {
	v, ok := a.Structure[name]
	return v, ok
}

// SetField writes a structure field on the working copy (handlers do this
// after variable substitution, the lifecycle note).
func (a *Action) SetField(name string, v any) {
	a.Structure[name] = v
}

func (a *Action) StringField(name string) (string, bool) {
	v, ok := a.Field(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (a *Action) FloatField(name string) (float64, bool) {
	v, ok := a.Field(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func (a *Action) BoolField(name string) (bool, bool) {
	v, ok := a.Field(name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
