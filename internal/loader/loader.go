// Package loader implements the scenario loader: resolving
// scenario references, parsing their structures, validating them against
// the action-type registry, and producing the three action queues.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scenengine/internal/action"
	"scenengine/internal/report"
	"scenengine/internal/scenfile"
)

// Loader parses one or more scenario files into a Scenario.
type Loader struct {
	Registry   *action.Registry
	SearchPath SearchPath
}

func New(registry *action.Registry) *Loader {
	return &Loader{Registry: registry, SearchPath: NewSearchPathFromEnv()}
}

type loadState struct {
	scenario        *action.Scenario
	sawNonConfig    bool
	sawPlaybackTime bool
	nextNumber      int
}

// Load resolves a colon-separated list of scenario references
// and returns the assembled Scenario.
func (l *Loader) Load(ctx context.Context, refs string, reporter report.Reporter) (*action.Scenario, error) {
	scenario := action.NewScenario(reporter)
	st := &loadState{scenario: scenario, nextNumber: 1}

	for _, ref := range strings.Split(refs, string(os.PathListSeparator)) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if err := l.loadOne(ctx, ref, st, false); err != nil {
			return nil, err
		}
	}
	return scenario, nil
}

func (l *Loader) loadOne(ctx context.Context, ref string, st *loadState, included bool) error {
	path, err := l.SearchPath.Resolve(ref)
	if err != nil {
		if included {
			return fmt.Errorf("%s: %q", report.CodeIncludeNotFound, ref)
		}
		return fmt.Errorf("scenario %q not found", ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading scenario %q: %w", ref, err)
	}
	structs, err := scenfile.Parse(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", report.CodeScenarioFileMalformed, err)
	}
	return l.process(ctx, structs, filepath.Dir(path), st, included)
}

func (l *Loader) process(ctx context.Context, structs []scenfile.Structure, dir string, st *loadState, included bool) error {
	for _, s := range structs {
		switch s.Name {
		case "description":
			if included {
				continue // an include's own description structure is ignored
			}
			if err := applyDescription(st.scenario, s); err != nil {
				return err
			}
			isConfig, _ := s.Field("is-config")
			if b, _ := isConfig.(bool); !b {
				if st.sawNonConfig {
					return fmt.Errorf("%s: more than one non-config scenario loaded", report.CodeMultipleActionScenarios)
				}
				st.sawNonConfig = true
			}
		case "include":
			loc, ok := s.Field("location")
			if !ok {
				return fmt.Errorf("%s: include missing \"location\"", report.CodeScenarioFileMalformed)
			}
			locStr, _ := loc.(string)
			target := locStr
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			if err := l.loadOne(ctx, target, st, true); err != nil {
				return err
			}
		default:
			if err := l.processAction(ctx, s, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// processAction resolves one action structure into a queued (or
// immediately-executed CONFIG) Action, per the steps 1-6.
func (l *Loader) processAction(ctx context.Context, s scenfile.Structure, st *loadState) error {
	typ, ok := l.Registry.Lookup(s.Name)
	if !ok {
		if optional, _ := s.Field("optional-action-type"); optional == true {
			return nil
		}
		return fmt.Errorf("%s: %q", report.CodeUnknownActionType, s.Name)
	}

	for _, p := range typ.Parameters {
		if !p.Mandatory {
			continue
		}
		if _, ok := s.Field(p.Name); !ok {
			return fmt.Errorf("%s: action %q missing mandatory field %q", report.CodeMissingMandatoryField, s.Name, p.Name)
		}
	}

	structure := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		structure[k] = v
	}

	act := action.NewAction(st.nextNumber, typ, structure)

	if v, ok := s.Field("sub-action"); ok {
		subStruct, err := resolveSubAction(v)
		if err != nil {
			return fmt.Errorf("action %q field \"sub-action\": %w", s.Name, err)
		}
		subFields := make(map[string]any, len(subStruct.Fields))
		for k, v := range subStruct.Fields {
			subFields[k] = v
		}
		var subType *action.Type
		if subStruct.Name != "" {
			subType, ok = l.Registry.Lookup(subStruct.Name)
			if !ok {
				return fmt.Errorf("%s: %q", report.CodeUnknownActionType, subStruct.Name)
			}
		}
		act.PushSubAction(subType, subFields)
	}

	if v, ok := s.Field("playback-time"); ok {
		switch pt := v.(type) {
		case float64:
			d := time.Duration(pt * float64(time.Second))
			act.PlaybackTime = &d
			st.sawPlaybackTime = true
		case string:
			act.PlaybackTimeExpr = pt
			act.NeedsPlaybackParsing = true
			st.sawPlaybackTime = true
		}
	}

	if v, ok := s.Field("timeout"); ok {
		f, err := action.ResolveNumeric(v, noVars)
		if err != nil {
			return fmt.Errorf("action %q field \"timeout\": %w", s.Name, err)
		}
		d := time.Duration(f * float64(time.Second))
		act.Timeout = &d
	}

	if typ.Flags.Has(action.FlagCanBeOptional) {
		if v, ok := s.Field("optional"); ok {
			act.Optional, _ = v.(bool)
		}
	}

	asConfig, _ := s.Field("as-config")
	isConfigLike := typ.Flags.Has(action.FlagConfig) || typ.Flags.Has(action.FlagHandledInConfig) || asConfig == true
	if isConfigLike {
		return l.executeConfigAction(ctx, act, st)
	}

	st.nextNumber++

	if typ.Flags.Has(action.FlagCanExecuteOnAddition) && act.PlaybackTime == nil && !act.NeedsPlaybackParsing && !st.sawPlaybackTime {
		st.scenario.QueueOnAddition(act)
		return nil
	}

	st.scenario.QueueMain(act)
	return nil
}

// executeConfigAction runs a CONFIG (or as-config) action's handler
// immediately at load time and discards it.
func (l *Loader) executeConfigAction(ctx context.Context, act *action.Action, st *loadState) error {
	act.Scenario = st.scenario
	if act.Type.Prepare != nil {
		if err := act.Type.Prepare(ctx, act); err != nil {
			return fmt.Errorf("config action %q: %w", act.Type.Name, err)
		}
	}
	if err := act.Prepare(ctx); err != nil {
		return fmt.Errorf("config action %q: %w", act.Type.Name, err)
	}
	if act.Type.Execute == nil {
		return nil
	}
	if _, err := act.Type.Execute(ctx, act); err != nil {
		return fmt.Errorf("config action %q: %w", act.Type.Name, err)
	}
	return nil
}

func applyDescription(sc *action.Scenario, s scenfile.Structure) error {
	if v, ok := s.Field("handles-states"); ok {
		sc.HandlesState, _ = v.(bool)
	}
	if v, ok := s.Field("pipeline-name"); ok {
		sc.PipelineName, _ = v.(string)
	}
	if v, ok := s.Field("summary"); ok {
		sc.Summary, _ = v.(string)
	}
	if v, ok := s.Field("max-latency"); ok {
		f, err := action.ResolveNumeric(v, noVars)
		if err != nil {
			return fmt.Errorf("description max-latency: %w", err)
		}
		sc.MaxLatency = time.Duration(f * float64(time.Second))
	}
	if v, ok := s.Field("max-dropped"); ok {
		f, err := action.ResolveNumeric(v, noVars)
		if err != nil {
			return fmt.Errorf("description max-dropped: %w", err)
		}
		sc.MaxDropped = int(f)
	}
	if v, ok := s.Field("min-media-duration"); ok {
		f, err := action.ResolveNumeric(v, noVars)
		if err != nil {
			return fmt.Errorf("description min-media-duration: %w", err)
		}
		sc.MinMediaDuration = time.Duration(f * float64(time.Second))
	}
	if v, ok := s.Field("min-audio-track"); ok {
		f, _ := action.ResolveNumeric(v, noVars)
		sc.MinAudioTrack = int(f)
	}
	if v, ok := s.Field("min-video-track"); ok {
		f, _ := action.ResolveNumeric(v, noVars)
		sc.MinVideoTrack = int(f)
	}
	if v, ok := s.Field("seek"); ok {
		sc.RequiresSeek, _ = v.(bool)
	}
	if v, ok := s.Field("reverse-playback"); ok {
		sc.ReversePlayback, _ = v.(bool)
	}
	if v, ok := s.Field("need-clock-sync"); ok {
		sc.NeedClockSync, _ = v.(bool)
	}
	return nil
}

// resolveSubAction normalizes a "sub-action" field value to a Structure:
// the scenario format allows both the inline form (sub-action=(name,
// field=val)), which the parser already turns into a scenfile.Structure,
// and the quoted-string form (sub-action="name, field=val"), which needs a
// second parse pass.
func resolveSubAction(v any) (scenfile.Structure, error) {
	switch t := v.(type) {
	case scenfile.Structure:
		return t, nil
	case string:
		structs, err := scenfile.Parse(t + ";")
		if err != nil {
			return scenfile.Structure{}, err
		}
		if len(structs) != 1 {
			return scenfile.Structure{}, fmt.Errorf("expected exactly one nested structure, got %d", len(structs))
		}
		return structs[0], nil
	default:
		return scenfile.Structure{}, fmt.Errorf("unsupported sub-action value %v (%T)", v, v)
	}
}

func noVars(string) (float64, bool) { return 0, false }
