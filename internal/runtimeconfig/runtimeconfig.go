// Package runtimeconfig loads the scenario engine's process-wide YAML
// configuration.
package runtimeconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"scenengine/internal/report"
)

// Config is the root scenginectl.yaml structure.
type Config struct {
	Flags       FlagsConfig `yaml:"flags,omitempty"`
	ScenariosPath []string  `yaml:"scenarios_path,omitempty"`
	OutputFiles []string    `yaml:"output_files,omitempty"`

	WaitMultiplier float64 `yaml:"scenario_wait_multiplier,omitempty"`
	DumpDotDir     string  `yaml:"dump_dot_dir,omitempty"`

	MaxLatency              time.Duration `yaml:"max_latency,omitempty"`
	MaxDropped              int           `yaml:"max_dropped,omitempty"`
	ActionExecutionInterval time.Duration `yaml:"scenario_action_execution_interval,omitempty"`

	Overrides []OverrideConfig `yaml:"overrides,omitempty"`
}

// FlagsConfig mirrors the FLAGS environment variable's fatal_*/print_* keys.
type FlagsConfig struct {
	FatalIssues    bool `yaml:"fatal_issues"`
	FatalWarnings  bool `yaml:"fatal_warnings"`
	FatalCriticals bool `yaml:"fatal_criticals"`
	PrintIssues    bool `yaml:"print_issues"`
	PrintWarnings  bool `yaml:"print_warnings"`
	PrintCriticals bool `yaml:"print_criticals"`
}

// OverrideConfig is one per-issue-id severity override entry.
type OverrideConfig struct {
	Code  string `yaml:"code"`
	Level string `yaml:"level"`
}

// Load reads and parses a scenginectl.yaml file. A missing path is not an
// error: it returns the zero Config, letting environment variables and CLI
// flags supply everything.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

// FatalityFlags converts the YAML flags into report.FatalityFlags,
// falling back to the FLAGS environment variable when the YAML value is
// unset.
func (c *Config) FatalityFlags() report.FatalityFlags {
	f := report.FatalityFlags{
		FatalIssues:    c.Flags.FatalIssues,
		FatalWarnings:  c.Flags.FatalWarnings,
		FatalCriticals: c.Flags.FatalCriticals,
	}
	for key, value := range parseFlagsEnv() {
		switch key {
		case "fatal_issues":
			f.FatalIssues = f.FatalIssues || value
		case "fatal_warnings":
			f.FatalWarnings = f.FatalWarnings || value
		case "fatal_criticals":
			f.FatalCriticals = f.FatalCriticals || value
		}
	}
	return f
}

// parseFlagsEnv parses the FLAGS environment variable, a comma-separated
// list of key=value pairs.
func parseFlagsEnv() map[string]bool {
	out := make(map[string]bool)
	raw := os.Getenv("FLAGS")
	if raw == "" {
		return out
	}
	for _, kv := range strings.Split(raw, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		out[strings.TrimSpace(parts[0])] = b
	}
	return out
}

// WaitMultiplierFromEnv returns SCENARIO_WAIT_MULTIPLIER if set, else the
// config file's value, else 1.0.
func (c *Config) WaitMultiplierFromEnv() float64 {
	if raw := os.Getenv("SCENARIO_WAIT_MULTIPLIER"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	if c.WaitMultiplier != 0 {
		return c.WaitMultiplier
	}
	return 1.0
}

// DumpDotDirFromEnv returns DUMP_DOT_DIR if set, else the config value.
func (c *Config) DumpDotDirFromEnv() string {
	if v := os.Getenv("DUMP_DOT_DIR"); v != "" {
		return v
	}
	return c.DumpDotDir
}

// ScenariosPathFromEnv returns SCENARIOS_PATH split on the platform list
// separator if set, else the config file's list.
func (c *Config) ScenariosPathFromEnv() []string {
	if raw := os.Getenv("SCENARIOS_PATH"); raw != "" {
		return strings.Split(raw, string(os.PathListSeparator))
	}
	return c.ScenariosPath
}

// OutputSinks resolves OUTPUT_FILES (env, then config) to a list of sink
// names ("stdout", "stderr", or a file path).
func (c *Config) OutputSinks() []string {
	if raw := os.Getenv("OUTPUT_FILES"); raw != "" {
		return strings.Split(raw, string(os.PathListSeparator))
	}
	if len(c.OutputFiles) > 0 {
		return c.OutputFiles
	}
	return []string{"stdout"}
}

// ApplyOverrides registers each configured severity override on reporter.
func (c *Config) ApplyOverrides(reporter report.Reporter) error {
	for _, o := range c.Overrides {
		level, err := parseLevel(o.Level)
		if err != nil {
			return fmt.Errorf("override %q: %w", o.Code, err)
		}
		reporter.OverrideSeverity(report.Code(o.Code), level)
	}
	return nil
}

func parseLevel(s string) (report.Level, error) {
	switch strings.ToLower(s) {
	case "info":
		return report.LevelInfo, nil
	case "issue":
		return report.LevelIssue, nil
	case "warning":
		return report.LevelWarning, nil
	case "critical":
		return report.LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity level %q", s)
	}
}
