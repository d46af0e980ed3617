package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scenengine/internal/action"
	"scenengine/internal/handlers"
	"scenengine/internal/loader"
	"scenengine/internal/report"
)

// runListScenarios implements the list_scenarios subcommand: prints every
// scenario visible on the search path, one line each, formatted
// "name<TAB>need-clock-sync=<bool><TAB>summary=<text>".
func runListScenarios(args []string) int {
	fs := flag.NewFlagSet("list_scenarios", flag.ExitOnError)
	outputFile := fs.String("output", "", "also write the listing to this file")
	fs.Parse(args)

	sp := loader.NewSearchPathFromEnv()
	names, err := discoverScenarioNames(sp.Dirs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitError
	}

	registry := action.NewRegistry()
	handlers.RegisterAll(registry, 1.0)
	ld := loader.New(registry)
	ld.SearchPath = sp

	var lines []string
	for _, name := range names {
		line, err := describeScenario(ld, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", name, err)
			continue
		}
		lines = append(lines, line)
	}

	out := strings.Join(lines, "\n")
	fmt.Println(out)

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(out+"\n"), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing %q: %v\n", *outputFile, err)
			return ExitError
		}
	}
	return ExitSuccess
}

func discoverScenarioNames(dirs []string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.scenario"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			name := strings.TrimSuffix(filepath.Base(m), ".scenario")
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func describeScenario(ld *loader.Loader, name string) (string, error) {
	sc, err := ld.Load(context.Background(), name, report.NewCollector())
	if err != nil {
		return "", err
	}

	needClockSync := sc.NeedClockSync
	for _, a := range allScenarioActions(sc) {
		if a.Type != nil && a.Type.Flags.Has(action.FlagNeedsClock) {
			needClockSync = true
			break
		}
	}

	return fmt.Sprintf("%s\tneed-clock-sync=%t\tsummary=%s", name, needClockSync, sc.Summary), nil
}

func allScenarioActions(sc *action.Scenario) []*action.Action {
	var out []*action.Action
	out = append(out, sc.RemainingMainActions()...)
	out = append(out, sc.InterlacedActions()...)
	out = append(out, sc.OnAdditionActions()...)
	return out
}
