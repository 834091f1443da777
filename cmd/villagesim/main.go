// Command villagesim runs the Hearth village simulation server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/hearth/internal/agents"
	"github.com/talgya/hearth/internal/api"
	"github.com/talgya/hearth/internal/catalog"
	"github.com/talgya/hearth/internal/config"
	"github.com/talgya/hearth/internal/engine"
	"github.com/talgya/hearth/internal/persistence"
	"github.com/talgya/hearth/internal/world"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (empty = built-in defaults)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	if err := run(*configPath); err != nil {
		slog.Error("villagesim failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.Info("Hearth village simulation", "seed", cfg.Seed, "width", cfg.World.Width, "height", cfg.World.Height)

	cat, err := catalog.Default()
	if cfg.Catalog != "" {
		cat, err = catalog.Load(cfg.Catalog)
	}
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	slog.Info("building catalog loaded", "types", len(cat.IDs()), "source", cfg.Catalog)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(engine.Options{
		Seed:          cfg.Seed,
		Width:         cfg.World.Width,
		Height:        cfg.World.Height,
		PathCacheSize: cfg.World.PathCacheSize,
		PoolCapacity:  cfg.World.PoolCapacity,
		Catalog:       cat,
		Unlocked:      cfg.Unlocked,
		Tuning:        villagerTuning(cfg.Villager),
		TickSeconds:   cfg.Sim.TickInterval.Seconds(),
		Parallel:      cfg.Sim.ParallelAgents,
		Workers:       cfg.Sim.Workers,
		AutoAssign:    cfg.Sim.AutoAssign,
	})
	if err != nil {
		return err
	}

	// ── Load or Generate Village ──────────────────────────────────────
	if db.HasWorldState() {
		slog.Info("found saved village, loading...")
		ws, err := db.LoadWorld()
		if err != nil {
			return err
		}
		if err := sim.Restore(ws); err != nil {
			return err
		}
	} else {
		slog.Info("no saved village found, founding a new one...")
		gen := world.DefaultGenConfig()
		gen.Width, gen.Height, gen.Seed = cfg.World.Width, cfg.World.Height, cfg.Seed
		if err := sim.Bootstrap(world.Generate(gen), cfg.StartingResources, cfg.StartingVillagers); err != nil {
			return err
		}
		if err := db.SaveWorld(sim.Export()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
		if err := db.SaveMeta("founded_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Error("founding date not saved", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = sim.CurrentTick()
	eng.Interval = cfg.Sim.TickInterval
	eng.BuildingEvery = engine.TicksFor(cfg.Sim.BuildingInterval, cfg.Sim.TickInterval)
	eng.SaveEvery = engine.TicksFor(cfg.Sim.AutosaveInterval, cfg.Sim.TickInterval)
	eng.SeasonEvery = cfg.Sim.TicksPerSeason

	// One building tick is one game minute per second of real time.
	minutes := cfg.Sim.BuildingInterval.Seconds()
	reportEvery := eng.BuildingEvery * 60

	saver := persistence.NewAutosaver(sim, db)
	eng.OnTick = sim.TickVillagers
	eng.OnBuildingTick = func(tick uint64) {
		sim.TickBuildings(tick, minutes)
		if tick%reportEvery == 0 {
			sim.Report(tick, eng.BuildingEvery)
		}
	}
	eng.OnSeason = sim.TickSeason
	eng.OnSave = saver.Save

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn(config.AdminKeyEnv + " not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		SnapshotDir: cfg.Storage.SnapshotDir,
		Port:        cfg.API.Port,
		AdminKey:    cfg.API.AdminKey,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiDone := make(chan error, 1)
	go func() { apiDone <- apiServer.Start(ctx) }()

	st := sim.Stats()
	fmt.Printf("\nHearth is alive: %d villagers, %d buildings.\n", st.Villagers, st.Buildings)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if eng.Tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", eng.Tick, engine.GameTime(eng.Tick, eng.BuildingEvery))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	slog.Info("final save...")
	saver.Save(sim.CurrentTick())
	if err := <-apiDone; err != nil {
		slog.Error("HTTP server error", "error", err)
	}

	fmt.Println("Simulation stopped. Village saved.")
	return nil
}

func villagerTuning(v config.VillagerConfig) agents.Tuning {
	return agents.Tuning{
		Speed:           v.Speed,
		CarryCapacity:   v.CarryCapacity,
		HarvestDuration: v.HarvestDuration,
		MaxHarvestTime:  v.MaxHarvestTime,
		HungerDecay:     v.HungerDecay,
	}
}
