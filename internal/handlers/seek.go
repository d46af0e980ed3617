package handlers

import (
	"context"
	"strings"

	"scenengine/internal/action"
	"scenengine/internal/pipeline"
)

func registerSeek(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "seek",
		Flags: action.FlagCanBeOptional | action.FlagNeedsClock,
		Parameters: []action.Param{
			{Name: "start", Types: "time", Description: "seek target position"},
			{Name: "stop", Types: "time", Description: "segment stop position"},
			{Name: "rate", Types: "double", Description: "playback rate"},
			{Name: "flags", Types: "string", Description: "'+'-joined seek flags, e.g. accurate+flush"},
			{Name: "start-type", Types: "string"},
			{Name: "stop-type", Types: "string"},
		},
		Execute: executeSeek,
	})
}

func executeSeek(ctx context.Context, a *action.Action) (action.State, error) {
	p, ok := requirePipeline(a)
	if !ok {
		return execErr(a, "no pipeline to seek")
	}

	req := pipeline.SeekRequest{Rate: 1.0}
	if r, ok := a.FloatField("rate"); ok {
		req.Rate = r
	}
	if flagsStr, ok := a.StringField("flags"); ok {
		req.Flags = parseSeekFlags(flagsStr)
	}
	if start, ok := a.FloatField("start"); ok {
		req.Start = secondsToDuration(start)
		req.StartType = pipeline.SeekTypeSet
	}
	if stop, ok := a.FloatField("stop"); ok {
		req.Stop = secondsToDuration(stop)
		req.StopType = pipeline.SeekTypeSet
	}

	if err := p.Seek(req); err != nil {
		return execErr(a, "seek failed: %v", err)
	}
	a.Scenario.RecordSeek(req)
	return action.StateAsync, nil
}

// parseSeekFlags parses the GFlags-style '+'-joined syntax the scenario
// format inherits from GLib's gst_value_deserialize on a GFlags type
// (e.g. "accurate+flush"), not a comma-separated list.
func parseSeekFlags(s string) pipeline.SeekFlags {
	var flags pipeline.SeekFlags
	for _, part := range strings.Split(s, "+") {
		switch strings.TrimSpace(part) {
		case "flush":
			flags |= pipeline.SeekFlagFlush
		case "accurate":
			flags |= pipeline.SeekFlagAccurate
		case "key-unit":
			flags |= pipeline.SeekFlagKeyUnit
		}
	}
	return flags
}
