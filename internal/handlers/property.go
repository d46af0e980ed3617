package handlers

import (
	"context"
	"fmt"

	"scenengine/internal/action"
)

func registerProperty(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "set-property",
		Flags: action.FlagCanBeOptional | action.FlagCanExecuteOnAddition,
		Parameters: []action.Param{
			{Name: "property-name", Mandatory: true, Types: "string"},
			{Name: "property-value", Mandatory: true},
		},
		Execute: executeSetProperty,
	})
}

func executeSetProperty(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to set property on")
	}
	el, ok := resolveTargetElement(a, p)
	if !ok {
		return execErr(a, "no target element found for set-property")
	}

	name, _ := a.StringField("property-name")
	value, _ := a.Field("property-value")

	if err := el.SetProperty(name, value); err != nil {
		return execErr(a, "setting property %q failed: %v", name, err)
	}

	readBack, err := el.GetProperty(name)
	if err != nil {
		return execErr(a, "reading back property %q failed: %v", name, err)
	}
	if !valuesEqual(readBack, value) {
		return execErr(a, "property %q read-back mismatch: set %v, got %v", name, value, readBack)
	}
	return action.StateOK, nil
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
