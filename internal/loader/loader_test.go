package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scenengine/internal/action"
	"scenengine/internal/report"
)

func newTestLoader(t *testing.T, files map[string]string) (*Loader, *action.Registry) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	reg := action.NewRegistry()
	l := New(reg)
	l.SearchPath = SearchPath{EnvDirs: []string{dir}}
	return l, reg
}

func registerBasic(reg *action.Registry) {
	reg.Register(&action.Type{
		Name: "set-state",
		Parameters: []action.Param{
			{Name: "state", Mandatory: true},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateOK, nil
		},
	})
	reg.Register(&action.Type{
		Name:  "set-vars",
		Flags: action.FlagConfig,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateOK, nil
		},
	})
	reg.Register(&action.Type{
		Name:  "wait",
		Flags: action.FlagCanExecuteOnAddition,
		Parameters: []action.Param{
			{Name: "duration", Types: "time"},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			return action.StateOK, nil
		},
	})
}

func TestLoad_BasicScenario(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"basic.scenario": `description, summary="basic";
set-state, state=playing, playback-time=0.0;
set-state, state=paused, playback-time=5.0;
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "basic", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	if sc.Summary != "basic" {
		t.Errorf("summary = %q", sc.Summary)
	}
	if sc.MainQueueLen() != 2 {
		t.Fatalf("expected 2 queued actions, got %d", sc.MainQueueLen())
	}
	head := sc.Head()
	if head.Type.Name != "set-state" {
		t.Errorf("head type = %q", head.Type.Name)
	}
	if head.PlaybackTime == nil || *head.PlaybackTime != 0 {
		t.Errorf("head playback-time = %v", head.PlaybackTime)
	}
}

func TestLoad_ExpressionPlaybackTimeDeferred(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"expr.scenario": `description, summary="expr";
set-state, state=playing, playback-time="position + 1.0";
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "expr", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	head := sc.Head()
	if !head.NeedsPlaybackParsing {
		t.Fatal("expected NeedsPlaybackParsing = true for an expression playback-time")
	}
	if head.PlaybackTimeExpr != "position + 1.0" {
		t.Errorf("playback-time expr = %q", head.PlaybackTimeExpr)
	}
}

func TestLoad_OnAdditionQueueing(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"onadd.scenario": `description, summary="onadd";
wait, duration=1.0;
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "onadd", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	if sc.MainQueueLen() != 0 {
		t.Fatalf("expected the wait action routed off the main queue, got %d", sc.MainQueueLen())
	}
	if len(sc.OnAdditionActions()) != 1 {
		t.Fatalf("expected 1 on-addition action, got %d", len(sc.OnAdditionActions()))
	}
}

func TestLoad_ConfigActionRunsImmediatelyAndIsNotQueued(t *testing.T) {
	ran := false
	l, reg := newTestLoader(t, map[string]string{
		"cfg.scenario": `description, summary="cfg";
set-vars, foo=1.0;
set-state, state=playing;
`,
	})
	registerBasic(reg)
	reg.Register(&action.Type{
		Name:  "set-vars",
		Flags: action.FlagConfig,
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			ran = true
			return action.StateOK, nil
		},
	})

	sc, err := l.Load(context.Background(), "cfg", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("expected config action to execute at load time")
	}
	if sc.MainQueueLen() != 1 {
		t.Fatalf("expected only the non-config action queued, got %d", sc.MainQueueLen())
	}
}

func TestLoad_UnknownActionType(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"bad.scenario": `description, summary="bad";
frobnicate, foo=1;
`,
	})
	registerBasic(reg)

	if _, err := l.Load(context.Background(), "bad", report.NewCollector()); err == nil {
		t.Fatal("expected an error for an unregistered action type")
	}
}

func TestLoad_OptionalUnknownActionTypeIsSkipped(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"opt.scenario": `description, summary="opt";
frobnicate, optional-action-type=true;
set-state, state=playing;
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "opt", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	if sc.MainQueueLen() != 1 {
		t.Fatalf("expected the unknown optional action to be skipped, got %d queued", sc.MainQueueLen())
	}
}

func TestLoad_MissingMandatoryField(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"mand.scenario": `description, summary="mand";
set-state, foo=1;
`,
	})
	registerBasic(reg)

	if _, err := l.Load(context.Background(), "mand", report.NewCollector()); err == nil {
		t.Fatal("expected an error for a missing mandatory field")
	}
}

func TestLoad_MultipleNonConfigScenariosRejected(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"a.scenario": `description, summary="a";
set-state, state=playing;
`,
		"b.scenario": `description, summary="b";
set-state, state=paused;
`,
	})
	registerBasic(reg)

	if _, err := l.Load(context.Background(), "a"+string(os.PathListSeparator)+"b", report.NewCollector()); err == nil {
		t.Fatal("expected an error loading two non-config scenarios together")
	}
}

func TestLoad_Include(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"main.scenario": `description, summary="main";
include, location="included.scenario";
set-state, state=playing;
`,
		"included.scenario": `description, summary="ignored";
set-state, state=paused;
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "main", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	if sc.Summary != "main" {
		t.Errorf("expected the include's own description to be ignored, got summary %q", sc.Summary)
	}
	if sc.MainQueueLen() != 2 {
		t.Fatalf("expected both scenarios' actions queued, got %d", sc.MainQueueLen())
	}
}

func TestLoad_TimeoutParsed(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"timeout.scenario": `description, summary="timeout";
set-state, state=playing, timeout=2.5;
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "timeout", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	head := sc.Head()
	if head.Timeout == nil || head.Timeout.Seconds() != 2.5 {
		t.Errorf("timeout = %v", head.Timeout)
	}
}

func TestLoad_SubActionStringFormQueuesNestedAction(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"sub.scenario": `description, summary="sub";
set-state, state=playing, sub-action="set-vars, foo=1.0";
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "sub", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	head := sc.Head()
	if head == nil || head.Type.Name != "set-state" {
		t.Fatalf("expected the parent action queued as head, got %+v", head)
	}
	if !head.HasPendingSubAction() {
		t.Fatal("expected the sub-action field to be queued on the parent action")
	}
}

func TestLoad_SubActionInlineFormQueuesNestedAction(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"sub.scenario": `description, summary="sub";
set-state, state=playing, sub-action=(set-vars, foo=1.0);
`,
	})
	registerBasic(reg)

	sc, err := l.Load(context.Background(), "sub", report.NewCollector())
	if err != nil {
		t.Fatal(err)
	}
	head := sc.Head()
	if !head.HasPendingSubAction() {
		t.Fatal("expected the inline sub-action to be queued on the parent action")
	}
}

func TestLoad_SubActionUnknownTypeIsRejected(t *testing.T) {
	l, reg := newTestLoader(t, map[string]string{
		"sub.scenario": `description, summary="sub";
set-state, state=playing, sub-action="frobnicate, foo=1";
`,
	})
	registerBasic(reg)

	if _, err := l.Load(context.Background(), "sub", report.NewCollector()); err == nil {
		t.Fatal("expected an error for a sub-action naming an unregistered type")
	}
}
