package loader

import (
	"os"
	"path/filepath"
)

const (
	scenarioExt        = ".scenario"
	defaultRelativeDir = "data/scenarios"
)

// SearchPath resolves scenario references to file paths:
// absolute path, then each SCENARIOS_PATH entry, then ./data/scenarios,
// then a user data dir, then a system data dir.
type SearchPath struct {
	EnvDirs      []string
	UserDataDir  string
	SystemDataDir string
}

// NewSearchPathFromEnv builds a SearchPath from SCENARIOS_PATH and the
// platform's conventional user/system data directories.
func NewSearchPathFromEnv() SearchPath {
	sp := SearchPath{
		SystemDataDir: "/usr/share/scenengine/scenarios",
	}
	if v := os.Getenv("SCENARIOS_PATH"); v != "" {
		sp.EnvDirs = splitPathList(v)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		sp.UserDataDir = filepath.Join(dir, "scenengine", "scenarios")
	}
	return sp
}

func splitPathList(v string) []string {
	var out []string
	start := 0
	for i := 0; i < len(v); i++ {
		if v[i] == os.PathListSeparator {
			out = append(out, v[start:i])
			start = i + 1
		}
	}
	out = append(out, v[start:])
	return out
}

// Dirs returns every directory this SearchPath scans, in resolution
// order, for callers that need to enumerate available scenarios.
func (sp SearchPath) Dirs() []string {
	var dirs []string
	dirs = append(dirs, sp.EnvDirs...)
	dirs = append(dirs, defaultRelativeDir)
	if sp.UserDataDir != "" {
		dirs = append(dirs, sp.UserDataDir)
	}
	if sp.SystemDataDir != "" {
		dirs = append(dirs, sp.SystemDataDir)
	}
	return dirs
}

// candidates returns paths tried in order for a basename reference,
// trying both the bare name and the name with the .scenario extension
// appended.
func (sp SearchPath) candidates(ref string) []string {
	var dirs []string
	dirs = append(dirs, sp.EnvDirs...)
	dirs = append(dirs, defaultRelativeDir)
	if sp.UserDataDir != "" {
		dirs = append(dirs, sp.UserDataDir)
	}
	if sp.SystemDataDir != "" {
		dirs = append(dirs, sp.SystemDataDir)
	}

	var out []string
	for _, d := range dirs {
		out = append(out, filepath.Join(d, ref))
		if filepath.Ext(ref) != scenarioExt {
			out = append(out, filepath.Join(d, ref+scenarioExt))
		}
	}
	return out
}

// Resolve finds the on-disk path for a scenario reference.
func (sp SearchPath) Resolve(ref string) (string, error) {
	if filepath.IsAbs(ref) {
		if _, err := os.Stat(ref); err == nil {
			return ref, nil
		}
		return "", os.ErrNotExist
	}
	for _, cand := range sp.candidates(ref) {
		if _, err := os.Stat(cand); err == nil {
			return cand, nil
		}
	}
	return "", os.ErrNotExist
}
