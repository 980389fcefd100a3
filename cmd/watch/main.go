// Command watch follows a contagion run through its HTTP API. It observes
// status and history on an interval, assesses the outbreak and logs a report
// until the run ends.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/contagion/internal/logging"
	"github.com/talgya/contagion/internal/watch"
)

func main() {
	start := flag.Bool("start", false, "start a run if the API is idle (needs CONTAGION_ADMIN_KEY)")
	population := flag.Int("population", 0, "population for -start; 0 uses the server default")
	flag.Parse()

	if _, err := logging.Setup(os.Stdout, envOrDefault("CONTAGION_LOG_LEVEL", "info"), "text"); err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}

	// Configuration from environment.
	apiURL := envOrDefault("CONTAGION_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("CONTAGION_ADMIN_KEY")
	intervalSec := envIntOrDefault("WATCH_INTERVAL", 5)

	if *start && adminKey == "" {
		slog.Error("CONTAGION_ADMIN_KEY is required with -start")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second
	slog.Info("contagion watch starting", "api_url", apiURL, "interval", interval)

	observer := watch.NewObserver(apiURL)
	actor := watch.NewActor(apiURL, adminKey)
	journal := &watch.Journal{}

	slog.Info("waiting for contagion API...")
	waitForAPI(observer)

	if *start {
		if err := startIfIdle(observer, actor, *population); err != nil {
			slog.Error("start failed", "error", err)
			os.Exit(1)
		}
	}

	// Run first cycle immediately.
	if runCycle(observer, journal) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if runCycle(observer, journal) {
				return
			}
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Watch stopped.")
			return
		}
	}
}

func startIfIdle(observer *watch.Observer, actor *watch.Actor, population int) error {
	snap, err := observer.Observe()
	if err != nil {
		return err
	}
	if !snap.Status.Idle() && !snap.Status.Ended() {
		slog.Info("run already in progress", "run", snap.Status.RunID, "state", snap.Status.State)
		return nil
	}
	req := watch.StartRequest{}
	if population > 0 {
		req.Population = &population
	}
	st, err := actor.Start(req)
	if err != nil {
		return err
	}
	slog.Info("run started", "run", st.RunID, "population", humanize.Comma(int64(st.Population)),
		"spreading_factor", st.Spreading, "mortality_rate", st.Mortality)
	return nil
}

// runCycle executes one observe → assess cycle. It returns true once the run
// has ended.
func runCycle(observer *watch.Observer, journal *watch.Journal) bool {
	snap, err := observer.Observe()
	if err != nil {
		slog.Error("observation failed", "error", err)
		return false
	}
	st := snap.Status
	if st.Idle() {
		slog.Info("no run started yet")
		return false
	}

	out := watch.Assess(snap)
	journal.Record(watch.CycleRecord{
		RunID:  st.RunID,
		Tick:   st.Tick,
		Active: out.Active,
		Growth: out.Growth,
		Level:  out.Level,
	})

	report := []any{
		"run", st.RunID,
		"tick", humanize.Comma(int64(st.Tick)),
		"level", out.Level,
		"population", humanize.Comma(int64(st.Population)),
		"healthy", humanize.Comma(int64(st.Healthy)),
		"infected", humanize.Comma(int64(st.Infected)),
		"hospitalized", fmt.Sprintf("%d/%d", st.Hospitalized, st.Capacity),
		"casualties", humanize.Comma(int64(st.Casualties)),
		"growth", fmt.Sprintf("%+.2f/tick", out.Growth),
		"mask_usage", fmt.Sprintf("%.1f%%", st.MaskUsage),
		"streams", st.Subscribers,
	}
	switch {
	case st.Fault != "":
		slog.Error("run faulted", append(report, "fault", st.Fault)...)
	case journal.Escalated():
		slog.Warn("outbreak escalating", report...)
	default:
		slog.Info("outbreak report", report...)
	}

	if st.Ended() {
		fmt.Printf("\nRun %s ended at tick %s: %s casualties of %s (%s), peak level %s.\n",
			st.RunID, humanize.Comma(int64(st.Tick)), humanize.Comma(int64(st.Casualties)),
			humanize.Comma(int64(st.Population)), humanize.FtoaWithDigits(out.CasualtyShare*100, 1)+"%",
			journal.PeakLevel())
		return true
	}
	return false
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(observer *watch.Observer) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !observer.Ready() {
		if time.Now().After(deadline) {
			slog.Error("contagion API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("contagion API not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
	slog.Info("contagion API is ready")
}
