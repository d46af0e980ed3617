package action

import (
	"context"
	"fmt"
	"time"

	"scenengine/internal/expr"
)

// ResolveNumeric evaluates a structure value that may already be a
// float64 or may be a string expression.
func ResolveNumeric(v any, lookup expr.Lookup) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return expr.Eval(n, lookup)
	default:
		return 0, fmt.Errorf("value %v is not numeric or a string expression", v)
	}
}

// ResolveDuration evaluates a structure value as seconds and converts it
// to a time.Duration.
func ResolveDuration(v any, lookup expr.Lookup) (time.Duration, error) {
	seconds, err := ResolveNumeric(v, lookup)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Prepare performs the pre-execute phase: substitute
// variables into every string field, force-convert fields the type
// schema declares as time-typed, and resolve repeat.
func (a *Action) Prepare(ctx context.Context) error {
	if a.Scenario == nil {
		return fmt.Errorf("action %d: not attached to a scenario", a.ActionNumber)
	}
	store := a.Scenario.Vars

	for name, v := range a.Structure {
		s, ok := v.(string)
		if !ok {
			continue
		}
		substituted, err := store.Substitute(s)
		if err != nil {
			return fmt.Errorf("action %d field %q: %w", a.ActionNumber, name, err)
		}
		a.Structure[name] = substituted
	}

	if a.Type != nil {
		for _, p := range a.Type.Parameters {
			if p.Types != "time" {
				continue
			}
			v, ok := a.Structure[p.Name]
			if !ok {
				continue
			}
			d, err := ResolveDuration(v, store.Lookup)
			if err != nil {
				return fmt.Errorf("action %d field %q: %w", a.ActionNumber, p.Name, err)
			}
			a.Structure[p.Name] = d.Seconds()
		}
	}

	if v, ok := a.Structure["repeat"]; ok {
		n, err := ResolveNumeric(v, store.Lookup)
		if err != nil {
			return fmt.Errorf("action %d field \"repeat\": %w", a.ActionNumber, err)
		}
		if n != float64(int(n)) {
			return fmt.Errorf("action %d field \"repeat\": %v is not an integer", a.ActionNumber, n)
		}
		a.Repeat = int(n)
	}

	return nil
}

// AdvanceAfterOK applies the post-execution bookkeeping for a
// synchronously or asynchronously completed action: pop a queued
// sub-action, or consume one repeat iteration. It returns true if the action should re-enter the
// READY state and be executed again in this tick.
func (a *Action) AdvanceAfterOK() (rerun bool) {
	if a.HasPendingSubAction() {
		a.PopSubAction()
		return true
	}
	if a.Repeat > 0 {
		a.Repeat--
		a.RestoreMainStructure()
		return true
	}
	return false
}

// Done reports whether the action has run its course: OK with no repeats
// left and no queued sub-action.
func (a *Action) Done() bool {
	return a.state == StateOK && a.Repeat <= 0 && !a.HasPendingSubAction()
}
