package handlers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
)

func registerCheckLastSample(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "check-last-sample",
		Flags: action.FlagCanBeOptional | action.FlagInterlaced,
		Parameters: []action.Param{
			{Name: "checksum", Mandatory: true, Types: "string"},
			{Name: "sink-name", Types: "string"},
			{Name: "sink-factory-name", Types: "string"},
			{Name: "sinkpad-caps", Types: "string"},
		},
		Execute: executeCheckLastSample,
	})
}

// executeCheckLastSample resolves a single sink by name, factory name or
// current sink pad caps, reads its last sample, and compares its SHA-1
// checksum against the expected value.
func executeCheckLastSample(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to check a sample against")
	}

	var (
		el    pipeline.Element
		found bool
	)
	if name, ok := a.StringField("sink-name"); ok {
		if e, ok := p.FindElement(name); ok {
			el, found = e, true
		}
	}
	if factory, ok := a.StringField("sink-factory-name"); ok {
		e, ok := p.FindElementByFactory(factory)
		if ok {
			if found {
				return execErr(a, "sink-name and sink-factory-name both matched an element: ambiguous")
			}
			el, found = e, true
		}
	}
	if caps, ok := a.StringField("sinkpad-caps"); ok {
		e, ok := p.FindElementBySinkCaps(caps)
		if ok {
			if found {
				return execErr(a, "sinkpad-caps and sink-name/sink-factory-name both matched an element: ambiguous")
			}
			el, found = e, true
		}
	}
	if !found {
		return execErr(a, "no sink found for check-last-sample")
	}

	sample, err := el.GetProperty("last-sample")
	if err != nil {
		return execErr(a, "no last sample available: %v", err)
	}
	buf, ok := sample.([]byte)
	if !ok {
		return execErr(a, "last-sample property is not a byte buffer")
	}

	sum := sha1.Sum(buf)
	got := hex.EncodeToString(sum[:])
	want, _ := a.StringField("checksum")
	if got != want {
		return execErr(a, "checksum mismatch: expected %s, got %s", want, got)
	}
	return action.StateOK, nil
}
