package handlers

import (
	"context"
	"sync"

	"scenengine/internal/action"
)

// pluginRegistry is a package-level stand-in for the pipeline factory's
// plugin/feature ranking table. It is process-wide, not per-scenario, matching the CONFIG
// actions' load-time-only, immediate-effect semantics.
var pluginRegistry = struct {
	mu            sync.Mutex
	ranks         map[string]int
	featureRanks  map[string]int
	disabled      map[string]bool
}{
	ranks:        make(map[string]int),
	featureRanks: make(map[string]int),
	disabled:     make(map[string]bool),
}

// PluginRank reports the last rank set for a plugin by name, for tests and
// introspection.
func PluginRank(name string) (int, bool) {
	pluginRegistry.mu.Lock()
	defer pluginRegistry.mu.Unlock()
	r, ok := pluginRegistry.ranks[name]
	return r, ok
}

// FeatureRank reports the last rank set for a plugin feature by name.
func FeatureRank(name string) (int, bool) {
	pluginRegistry.mu.Lock()
	defer pluginRegistry.mu.Unlock()
	r, ok := pluginRegistry.featureRanks[name]
	return r, ok
}

// PluginDisabled reports whether a plugin has been disabled.
func PluginDisabled(name string) bool {
	pluginRegistry.mu.Lock()
	defer pluginRegistry.mu.Unlock()
	return pluginRegistry.disabled[name]
}

func registerPluginConfig(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "set-rank",
		Flags: action.FlagConfig,
		Parameters: []action.Param{
			{Name: "plugin-name", Mandatory: true, Types: "string"},
			{Name: "rank", Mandatory: true, Types: "double"},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			name, _ := a.StringField("plugin-name")
			rank, _ := a.FloatField("rank")
			pluginRegistry.mu.Lock()
			pluginRegistry.ranks[name] = int(rank)
			pluginRegistry.mu.Unlock()
			return action.StateOK, nil
		},
	})
	reg.Register(&action.Type{
		Name:  "set-feature-rank",
		Flags: action.FlagConfig,
		Parameters: []action.Param{
			{Name: "feature-name", Mandatory: true, Types: "string"},
			{Name: "rank", Mandatory: true, Types: "double"},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			name, _ := a.StringField("feature-name")
			rank, _ := a.FloatField("rank")
			pluginRegistry.mu.Lock()
			pluginRegistry.featureRanks[name] = int(rank)
			pluginRegistry.mu.Unlock()
			return action.StateOK, nil
		},
	})
	reg.Register(&action.Type{
		Name:  "disable-plugin",
		Flags: action.FlagConfig,
		Parameters: []action.Param{
			{Name: "plugin-name", Mandatory: true, Types: "string"},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			name, _ := a.StringField("plugin-name")
			pluginRegistry.mu.Lock()
			pluginRegistry.disabled[name] = true
			pluginRegistry.mu.Unlock()
			return action.StateOK, nil
		},
	})
}

// registerSetVars registers "set-vars" as an ordinary queued, playback-time-
// gated action rather than a CONFIG action: it must fire in its declared
// position among the rest of the scenario, since a scenario can place it
// after a seek/wait deliberately to sequence a later expression, and
// CONFIG actions all run immediately at load time before the pipeline
// even exists.
func registerSetVars(reg *action.Registry) {
	reg.Register(&action.Type{
		Name: "set-vars",
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			for name, v := range a.Structure {
				switch val := v.(type) {
				case float64:
					a.Scenario.Vars.SetNumber(name, val)
				case int:
					a.Scenario.Vars.SetNumber(name, float64(val))
				case string:
					a.Scenario.Vars.SetString(name, val)
				}
			}
			return action.StateOK, nil
		},
	})
}

func registerSetDebugThreshold(reg *action.Registry) {
	reg.Register(&action.Type{
		Name:  "set-debug-threshold",
		Flags: action.FlagConfig,
		Parameters: []action.Param{
			{Name: "debug-threshold", Mandatory: true, Types: "string"},
		},
		Execute: func(ctx context.Context, a *action.Action) (action.State, error) {
			threshold, _ := a.StringField("debug-threshold")
			a.Scenario.DebugThreshold = threshold
			return action.StateOK, nil
		},
	})
}
