package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/simcore/locomotion/internal/config"
	"github.com/simcore/locomotion/internal/dispatcher"
	"github.com/simcore/locomotion/internal/monitor"
	"github.com/simcore/locomotion/internal/sim"
	"github.com/simcore/locomotion/internal/storage"
	"github.com/simcore/locomotion/internal/worker"
	"github.com/simcore/locomotion/pkg/core"
)

const drainTimeout = 30 * time.Second

// runCommand loads the scenario, steps the world and records the run.
func runCommand(args []string) error {
	if _, err := parseFlags("run", args, nil); err != nil {
		return err
	}
	if err := initLogging(); err != nil {
		return err
	}
	defer closeLogging()

	simCfg := config.GetSimConfig()
	dt := simCfg.DT()
	if dt <= 0 {
		return fmt.Errorf("sim.tickRate must be positive, got %v", simCfg.TickRate)
	}

	archetypes, err := config.GetArchetypes()
	if err != nil {
		return fmt.Errorf("failed to load archetypes: %w", err)
	}
	munitions, err := config.GetMunitions()
	if err != nil {
		return fmt.Errorf("failed to load munitions: %w", err)
	}
	scenario, err := config.GetScenario()
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, Logger, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	eventDispatcher, err := dispatcher.New(Logger)
	if err != nil {
		return fmt.Errorf("failed to create event dispatcher: %w", err)
	}
	workerManager := worker.NewManager(backend)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Debug("Worker handlers registered with dispatcher")

	world, err := sim.NewWorld(sim.Options{
		Archetypes: archetypes,
		Munitions:  munitions,
		Events:     eventDispatcher,
		Logger:     Logger,
		MinTick:    simCfg.MinTick,
		MaxTick:    simCfg.MaxTick,
		Seed:       simCfg.Seed,
		Start:      SessionStartTime,
	})
	if err != nil {
		return fmt.Errorf("failed to create world: %w", err)
	}

	run := &core.Run{
		Name:            scenario.Name,
		Scenario:        scenario.Name,
		StartTime:       SessionStartTime,
		TickRate:        simCfg.TickRate,
		OriginLongitude: simCfg.Origin.Longitude,
		OriginLatitude:  simCfg.Origin.Latitude,
		Version:         CurrentVersion,
	}
	// entities join the run while the scenario loads
	if err := backend.StartRun(run); err != nil {
		Logger.Error("Failed to start run", "error", err)
		return err
	}
	currentRunID.Store(uint64(run.ID))

	statusMonitor := monitor.NewService(monitor.Dependencies{
		Logger:     Logger,
		Stats:      workerManager,
		RunID:      func() uint { return uint(currentRunID.Load()) },
		StatusPath: filepath.Join(config.GetString("logsDir"), "status.json"),
	})
	if err := statusMonitor.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}
	defer statusMonitor.Stop()

	if err := world.LoadScenario(scenario); err != nil {
		return fmt.Errorf("failed to load scenario %q: %w", scenario.Name, err)
	}
	Logger.Info("Scenario loaded",
		"scenario", scenario.Name,
		"entities", len(scenario.Entities),
		"ticks", simCfg.Ticks,
		"dt", dt,
		"realtime", simCfg.Realtime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	ticks, runErr := world.Run(ctx, simCfg.Ticks, dt, simCfg.Realtime)
	if errors.Is(runErr, context.Canceled) {
		Logger.Warn("Run interrupted", "ticks", ticks)
		runErr = nil
	}
	Logger.Info("Simulation finished", "ticks", ticks, "wall", time.Since(started).String())

	return errors.Join(runErr, finishRun(eventDispatcher, backend, workerManager, run, world))
}

// finishRun drains queued events before the backend closes the run.
func finishRun(d *dispatcher.Dispatcher, backend storage.Backend, wm *worker.Manager, run *core.Run, world *sim.World) error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		Logger.Error("Failed to drain event queues", "error", err)
	}

	last := world.Current()
	run.Ticks = last.Number
	run.EndTime = last.Time
	if run.EndTime.IsZero() {
		run.EndTime = run.StartTime
	}
	if err := backend.EndRun(run); err != nil {
		Logger.Error("Failed to end run", "error", err)
		return err
	}

	st := wm.Stats()
	attrs := []any{"runId", run.ID, "ticks", run.Ticks, "recorded", st.Recorded, "rejected", st.Rejected,
		"lastWrite", st.LastWrite.String()}
	if exp, ok := backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		attrs = append(attrs, "file", exp.ExportedFilePath())
	}
	Logger.Info("Run saved", attrs...)
	return nil
}

// exportCommand replays stored runs through the memory backend to write
// their JSON recordings.
func exportCommand(args []string) error {
	var dbPath, outDir string
	var compress bool
	fs, err := parseFlags("export", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&dbPath, "db", "", "SQLite database file to read (default: the configured Postgres server)")
		fs.StringVar(&outDir, "out", "", "output directory (default: storage.memory.outputDir)")
		fs.BoolVar(&compress, "gzip", true, "gzip the JSON output")
	})
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no run IDs provided")
	}
	if err := initLogging(); err != nil {
		return err
	}
	defer closeLogging()

	memCfg := config.GetStorageConfig().Memory
	if outDir != "" {
		memCfg.OutputDir = outDir
	}
	memCfg.CompressOutput = compress

	return exportRuns(dbPath, fs.Args(), memCfg)
}
