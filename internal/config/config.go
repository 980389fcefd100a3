// Package config loads process settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
)

// Config is the full process configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Engine  EngineConfig  `yaml:"engine"`
	Run     RunConfig     `yaml:"run"`
	Limits  agents.Limits `yaml:"limits"`
	History HistoryConfig `yaml:"history"`
	Chart   ChartConfig   `yaml:"chart"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Port        int      `yaml:"port"`
	AdminKey    string   `yaml:"admin_key"`
	CORSOrigins []string `yaml:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit"` // command requests per second per client
	RateBurst   int      `yaml:"rate_burst"`
}

// LogConfig selects log verbosity and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// EngineConfig holds settings shared by every run.
type EngineConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	ReportEvery  int           `yaml:"report_every"`
	Placement    string        `yaml:"placement"`
}

// RunConfig holds the parameters of the autostarted run. Zero rates are
// filled with random defaults at start.
type RunConfig struct {
	Autostart       bool    `yaml:"autostart"`
	Population      int     `yaml:"population"`
	SpreadingFactor float64 `yaml:"spreading_factor"`
	MortalityRate   float64 `yaml:"mortality_rate"`
}

// HistoryConfig points the sample store at its database.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// ChartConfig sizes the rendered chart.
type ChartConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:      8080,
			RateLimit: 2,
			RateBurst: 10,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			TickInterval: time.Second,
			ReportEvery:  60,
			Placement:    engine.PlacementRandom,
		},
		Run:     RunConfig{Population: engine.DefaultPopulation},
		Limits:  agents.DefaultLimits(),
		History: HistoryConfig{DSN: ":memory:"},
		Chart:   ChartConfig{Width: 1024, Height: 400},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CONTAGION_ADMIN_KEY"); ok {
		c.HTTP.AdminKey = v
	}
	if v, ok := lookup("CONTAGION_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONTAGION_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v, ok := lookup("CONTAGION_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.HTTP.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.HTTP.CORSOrigins = append(c.HTTP.CORSOrigins, o)
			}
		}
	}
	return nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		errs = append(errs, errors.New("http.rate_limit and http.rate_burst must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q unknown", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q unknown", c.Log.Format))
	}
	if c.Engine.TickInterval <= 0 {
		errs = append(errs, errors.New("engine.tick_interval must be positive"))
	}
	if c.Engine.ReportEvery < 0 {
		errs = append(errs, errors.New("engine.report_every must not be negative"))
	}
	switch c.Engine.Placement {
	case engine.PlacementRandom, engine.PlacementClustered:
	default:
		errs = append(errs, fmt.Errorf("engine.placement %q unknown", c.Engine.Placement))
	}
	if c.Run.Population < 0 {
		errs = append(errs, errors.New("run.population must not be negative"))
	}
	if c.Run.SpreadingFactor < 0 || c.Run.SpreadingFactor > 1 {
		errs = append(errs, errors.New("run.spreading_factor must be in [0,1]"))
	}
	if c.Run.MortalityRate < 0 || c.Run.MortalityRate > 1 {
		errs = append(errs, errors.New("run.mortality_rate must be in [0,1]"))
	}
	if err := c.Limits.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("limits: %w", err))
	}
	if c.History.DSN != ":memory:" && !strings.Contains(c.History.DSN, "mode=memory") {
		errs = append(errs, errors.New("history.dsn must be an in-memory database"))
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		errs = append(errs, errors.New("chart size must be positive"))
	}
	return errors.Join(errs...)
}

// EngineOptions converts c into engine options.
func (c Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Limits = c.Limits
	opts.TickInterval = c.Engine.TickInterval
	opts.ReportEvery = c.Engine.ReportEvery
	opts.Placement = c.Engine.Placement
	return opts
}
