package handlers

import (
	"context"
	"os"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
)

func registerAppsrc(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "appsrc-push",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "target-element-name", Mandatory: true, Types: "string"},
			{Name: "file-name", Mandatory: true, Types: "string"},
			{Name: "offset", Types: "double"},
			{Name: "size", Types: "double"},
			{Name: "caps", Types: "string"},
		},
		Execute: executeAppsrcPush,
	})
	reg.Register(&action.Type{
		Name:  "appsrc-eos",
		Flags: action.FlagCanBeOptional,
		Parameters: []action.Param{
			{Name: "target-element-name", Mandatory: true, Types: "string"},
		},
		Execute: executeAppsrcEOS,
	})
}

// executeAppsrcPush implements the appsrc-push contract: slice a
// file into a buffer and signal-push it into the named appsrc, completing
// via a one-shot chain-wrapper callback once the buffer transits.
func executeAppsrcPush(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to push a buffer into")
	}
	name, _ := a.StringField("target-element-name")
	el, found := p.FindElement(name)
	if !found {
		return execErr(a, "appsrc element %q not found", name)
	}

	fileName, _ := a.StringField("file-name")
	data, err := os.ReadFile(fileName)
	if err != nil {
		return execErr(a, "reading %q failed: %v", fileName, err)
	}

	offset := 0
	if v, ok := a.FloatField("offset"); ok {
		offset = int(v)
	}
	size := len(data) - offset
	if v, ok := a.FloatField("size"); ok {
		size = int(v)
	}
	if offset < 0 || offset > len(data) || offset+size > len(data) || size < 0 {
		return execErr(a, "buffer slice [%d:%d+%d] out of range for %q (%d bytes)", offset, offset, size, fileName, len(data))
	}
	buf := data[offset : offset+size]

	caps, _ := a.StringField("caps")
	if _, err := el.EmitSignal("push-buffer", buf, caps); err != nil {
		return execErr(a, "push-buffer on %q failed: %v", name, err)
	}

	sc := a.Scenario
	// The one-shot chain-wrapper is modeled as a short deferred callback:
	// a real pad probe fires once the buffer clears the downstream peer,
	// which this fake stands in for with an immediate timer.
	time.AfterFunc(time.Millisecond, func() { sc.SetDone(a) })

	if p.State() >= pipeline.StatePaused {
		return action.StateAsync, nil
	}
	return action.StateInterlaced, nil
}

func executeAppsrcEOS(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to send appsrc EOS on")
	}
	name, _ := a.StringField("target-element-name")
	el, found := p.FindElement(name)
	if !found {
		return execErr(a, "appsrc element %q not found", name)
	}
	if _, err := el.EmitSignal("end-of-stream"); err != nil {
		return execErr(a, "end-of-stream on %q failed: %v", name, err)
	}
	return action.StateOK, nil
}
