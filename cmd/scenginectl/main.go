// Command scenginectl loads and runs scenario files against a pipeline
// implementation, or lists the scenarios visible on the search path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scenengine/internal/action"
	"scenengine/internal/dispatcher"
	"scenengine/internal/handlers"
	"scenengine/internal/loader"
	"scenengine/internal/progress"
	"scenengine/internal/reactor"
	"scenengine/internal/report"
	"scenengine/internal/runtimeconfig"
)

const (
	ExitSuccess         = 0
	ExitThresholdFailed = 1
	ExitError           = 2
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "list_scenarios" {
		os.Exit(runListScenarios(os.Args[2:]))
	}
	os.Exit(runScenario(os.Args[1:]))
}

func runScenario(args []string) int {
	fs := flag.NewFlagSet("scenginectl", flag.ExitOnError)
	configPath := fs.String("config", "", "path to scenginectl.yaml")
	scenarioRefs := fs.String("scenarios", "", "colon-separated scenario references (required)")
	output := fs.String("output", "stdout", "report sink: stdout, stderr, or a file path")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	fs.Parse(args)

	if *scenarioRefs == "" {
		fmt.Fprintln(os.Stderr, "error: --scenarios is required")
		fs.Usage()
		return ExitError
	}

	cfg, err := runtimeconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitError
	}

	sinks := resolveSinks(cfg, *output, *quiet)
	collector := report.NewCollector(sinks...)
	if err := cfg.ApplyOverrides(collector); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitError
	}

	registry := action.NewRegistry()
	handlers.RegisterAll(registry, cfg.WaitMultiplierFromEnv())

	ld := loader.New(registry)
	ld.SearchPath = loader.NewSearchPathFromEnv()
	ld.SearchPath.EnvDirs = cfg.ScenariosPathFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	interrupted := false
	go func() {
		<-sigCh
		interrupted = true
		if !*quiet {
			fmt.Fprintln(os.Stderr, "\nreceived interrupt, tearing down scenario...")
		}
		cancel()
	}()

	sc, err := ld.Load(ctx, *scenarioRefs, collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading scenario: %v\n", err)
		return ExitError
	}

	if cfg.ActionExecutionInterval > 0 {
		sc.ActionExecutionInterval = cfg.ActionExecutionInterval
	}
	if cfg.MaxLatency > 0 {
		sc.MaxLatency = cfg.MaxLatency
	}
	if cfg.MaxDropped > 0 {
		sc.MaxDropped = cfg.MaxDropped
	}
	sc.DumpDotDir = cfg.DumpDotDirFromEnv()

	d := dispatcher.New(sc)
	r := reactor.New(sc, registry)

	prog := progress.NewProgress(sc, *quiet)
	prog.Start()

	errCh := make(chan error, 2)
	go func() { errCh <- d.Run(ctx) }()
	go func() { errCh <- r.Run(ctx) }()

	var runErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && runErr == nil && err != context.Canceled {
			runErr = err
		}
	}
	prog.Stop()
	sc.Finalize()
	collector.Close()

	if interrupted {
		return ExitSuccess
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "scenario error: %v\n", runErr)
		return ExitThresholdFailed
	}

	for _, evt := range collector.History() {
		fatality := cfg.FatalityFlags()
		if fatality.IsFatal(evt.Level) {
			return ExitThresholdFailed
		}
	}
	return ExitSuccess
}

func resolveSinks(cfg *runtimeconfig.Config, cliOutput string, quiet bool) []report.Sink {
	if quiet {
		return nil
	}
	names := []string{cliOutput}
	if cliOutput == "stdout" {
		names = cfg.OutputSinks()
	}

	var sinks []report.Sink
	for _, n := range names {
		switch n {
		case "stdout":
			sinks = append(sinks, os.Stdout)
		case "stderr":
			sinks = append(sinks, os.Stderr)
		default:
			f, err := os.OpenFile(n, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not open output file %q: %v\n", n, err)
				continue
			}
			sinks = append(sinks, f)
		}
	}
	return sinks
}
