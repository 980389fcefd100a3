// Command contagion runs the epidemic simulation behind its HTTP API.
//
// With -ticks N it instead runs a single headless simulation for N ticks and
// prints the final counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/contagion/internal/api"
	"github.com/talgya/contagion/internal/config"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/entropy"
	"github.com/talgya/contagion/internal/history"
	"github.com/talgya/contagion/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	ticks := flag.Int("ticks", 0, "run headless for this many ticks and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}

	rng := entropy.NewSource()
	params := defaultParams(cfg.Run, rng)

	if *ticks > 0 {
		if err := runHeadless(cfg, params, *ticks); err != nil {
			slog.Error("headless run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// ── History ───────────────────────────────────────────────────────
	store, err := history.Open(cfg.History.DSN)
	if err != nil {
		slog.Error("failed to open history", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	recorder := history.NewRecorder(store)

	// ── Engine ────────────────────────────────────────────────────────
	ctrl := engine.NewController(cfg.EngineOptions())
	ctrl.OnStart(recorder.Watch)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.HTTP.AdminKey == "" {
		slog.Warn("CONTAGION_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Ctrl:        ctrl,
		History:     store,
		Port:        cfg.HTTP.Port,
		AdminKey:    cfg.HTTP.AdminKey,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Limiter:     api.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst),
		Defaults: engine.Params{
			Population:      cfg.Run.Population,
			SpreadingFactor: cfg.Run.SpreadingFactor,
			MortalityRate:   cfg.Run.MortalityRate,
		},
		Rand:        rng,
		ChartWidth:  cfg.Chart.Width,
		ChartHeight: cfg.Chart.Height,
	}
	srv := apiServer.Start()

	if cfg.Run.Autostart {
		sim, err := ctrl.Start(context.Background(), params)
		if err != nil {
			slog.Error("autostart failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nContagion is spreading: %s agents, spreading factor %.1f, mortality %.1f.\n",
			humanize.Comma(int64(sim.Population())), params.SpreadingFactor, params.MortalityRate)
	}
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.HTTP.Port)

	// ── Wait ──────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	engineErr := ctrl.Shutdown(ctx)
	if engineErr != nil {
		slog.Error("engine shutdown failed", "error", engineErr)
	}
	if err := api.Shutdown(ctx, srv); err != nil {
		slog.Error("api shutdown failed", "error", err)
	}
	// The recorder only drains once the run has ended.
	if engineErr == nil {
		recorder.Wait()
	}

	fmt.Println("Simulation stopped.")
}

// defaultParams turns the configured run into engine parameters, drawing
// unset rates at random.
func defaultParams(run config.RunConfig, rng *entropy.Source) engine.Params {
	p := engine.Params{
		Population:      run.Population,
		SpreadingFactor: run.SpreadingFactor,
		MortalityRate:   run.MortalityRate,
	}
	if p.SpreadingFactor == 0 {
		p.SpreadingFactor = engine.RandomSpreadingFactor(rng)
	}
	if p.MortalityRate == 0 {
		p.MortalityRate = engine.RandomMortalityRate(rng)
	}
	return p
}

// runHeadless steps one simulation on this goroutine as fast as it can.
func runHeadless(cfg config.Config, p engine.Params, ticks int) error {
	sim, err := engine.New(p, cfg.EngineOptions())
	if err != nil {
		return err
	}
	start := time.Now()
	for i := 0; i < ticks; i++ {
		if err := sim.Step(); err != nil {
			return fmt.Errorf("tick %d: %w", sim.Tick(), err)
		}
	}
	if err := sim.End(); err != nil {
		return err
	}

	st := sim.Stats()
	fmt.Printf("\nRun %s finished after %s ticks in %s.\n", st.RunID, humanize.Comma(int64(st.Tick)), time.Since(start).Round(time.Millisecond))
	fmt.Printf("  population   %s\n", humanize.Comma(int64(st.Population)))
	fmt.Printf("  healthy      %s\n", humanize.Comma(int64(st.Healthy)))
	fmt.Printf("  infected     %s\n", humanize.Comma(int64(st.Infected)))
	fmt.Printf("  hospitalized %s (of %d ventilators)\n", humanize.Comma(int64(st.Hospitalized)), st.Capacity)
	fmt.Printf("  casualties   %s\n", humanize.Comma(int64(st.Casualties)))
	fmt.Printf("  mask usage   %.1f%%\n", st.MaskUsagePercentage)
	return nil
}
