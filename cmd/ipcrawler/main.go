package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ipcrawler/pkg/artifact"
	"ipcrawler/pkg/config"
	"ipcrawler/pkg/events"
	"ipcrawler/pkg/limiter"
	"ipcrawler/pkg/log"
	"ipcrawler/pkg/metrics"
	"ipcrawler/pkg/organizer"
	"ipcrawler/pkg/plugins"
	"ipcrawler/pkg/scheduler"
	"ipcrawler/pkg/state"
	"ipcrawler/pkg/types"
)

var (
	target     string
	verbose    bool
	debug      bool
	simple     bool
	skipChecks bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ipcrawler",
	Short:   "ipcrawler drives a phased external-tool reconnaissance scan against a single target",
	Version: "dev",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&target, "target", "t", "", "target host/IP/domain to scan (required)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose human output")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "debug logs (implies verbose)")
	rootCmd.Flags().BoolVar(&simple, "simple", false, "force simple progress output (no TUI)")
	rootCmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "skip preflight checks (directory writability, file descriptors)")
	rootCmd.MarkFlagRequired("target")
}

func logLevel() log.Level {
	if debug {
		return log.DebugLevel
	}
	if verbose {
		return log.InfoLevel
	}
	return log.WarnLevel
}

func runScan(ctx context.Context) error {
	start := time.Now()

	log.Init(log.Config{Level: logLevel(), JSONOutput: debug})
	logger := log.WithTarget(target)
	logger.Info().Msg("starting ipcrawler")

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info().
		Int("max_total_scans", cfg.Concurrency.MaxTotalScans).
		Int("max_port_scans", cfg.Concurrency.MaxPortScans).
		Msg("configuration loaded")

	// Toolchain verification runs before any directory is created: a
	// missing tool must fail with no artifacts/ tree left behind.
	if err := organizer.VerifyBaseTools(); err != nil {
		return fmt.Errorf("toolchain verification: %w", err)
	}

	registry := plugins.Default()
	if err := registry.ValidateTools(); err != nil {
		return fmt.Errorf("plugin tool verification: %w", err)
	}
	logger.Info().Interface("phase_counts", registry.PhaseCounts()).Msg("plugin registry ready")

	runID := organizer.NewRunID(target, start)
	logger.Info().Str("run_id", runID).Msg("run id assigned")

	dirs, err := organizer.PrepareRunDirs(runID)
	if err != nil {
		return fmt.Errorf("prepare run directories: %w", err)
	}

	if !skipChecks {
		if err := organizer.Preflight(dirs, cfg); err != nil {
			return fmt.Errorf("preflight checks: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn().Msg("interrupt received, canceling run")
			cancel()
		case <-runCtx.Done():
		}
	}()

	lim := limiter.New(cfg.Concurrency.MaxTotalScans, map[string]int{
		scheduler.PhaseReconnaissance: cfg.Concurrency.MaxPortScans,
		scheduler.PhasePortDiscovery:  cfg.Concurrency.MaxPortScans,
		scheduler.PhaseServiceProbing: cfg.Concurrency.MaxServiceScans,
		scheduler.PhaseVulnerability:  cfg.Concurrency.MaxServiceScans,
	})

	collector := metrics.NewCollector(lim, scheduler.Phases)
	collector.Start()
	defer collector.Stop()
	metrics.RegisterComponent("limiter", true, "")
	metrics.RegisterComponent("event_bus", true, "")

	bus := events.NewBus(256)
	runState := state.New(target, runID)
	writerDone := make(chan struct{})
	go func() {
		state.Run(runState, bus)
		close(writerDone)
	}()

	t := types.Target{Value: target, RunID: runID, Dirs: dirs}
	sched := scheduler.New(registry, lim, bus)

	runTimer := metrics.NewTimer()
	sched.Run(runCtx, t, cfg, runState)
	bus.Stop()
	<-writerDone
	runTimer.ObserveDuration(metrics.RunDuration)

	outcome := "completed"
	if runCtx.Err() != nil {
		outcome = "aborted"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()

	snap := runState.Snapshot()
	reportDirs := artifact.Dirs{Scans: dirs.Scans, Report: dirs.Report}
	reportCtx := artifact.BuildContext(snap, reportDirs, start)

	metrics.RegisterComponent("artifact_writer", true, "")
	if err := artifact.WriteReport(reportCtx, reportDirs, debug); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := artifact.Validate(reportDirs); err != nil {
		return fmt.Errorf("validate report: %w", err)
	}

	printSummary(snap, dirs)
	return nil
}

func printSummary(snap state.Snapshot, dirs types.RunDirs) {
	fmt.Println()
	fmt.Println("===========================================")
	fmt.Println("ipcrawler Run Complete")
	fmt.Println("===========================================")
	fmt.Printf("\nTarget: %s\n", snap.Target)
	fmt.Printf("Run ID: %s\n", snap.RunID)

	fmt.Println("\nResults:")
	fmt.Printf("  Open Ports: %d\n", len(snap.PortsOpen))
	fmt.Printf("  Services: %d\n", len(snap.Services))

	fmt.Println("\nExecution:")
	fmt.Printf("  Tasks: %d/%d\n", snap.TasksCompleted, snap.TasksStarted)
	if len(snap.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(snap.Errors))
	}

	if len(snap.PortsOpen) > 0 {
		fmt.Println("\nOpen Ports:")
		for _, p := range snap.PortsOpen {
			fmt.Printf("  - %d: %s\n", p.Port, p.Name)
		}
	}

	fmt.Printf("\nReports written to %s\n", dirs.Report)
}
