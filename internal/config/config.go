// Package config loads the dashboard configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/quantity"
	"gopkg.in/yaml.v3"
)


type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Storage   StorageConfig   `yaml:"storage"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DataConfig struct {
	// Path is the scale's CSV export.
	Path string `yaml:"path"`
}

type StorageConfig struct {
	// Heavy stages rows in a scratch SQLite database instead of memory.
	Heavy      bool   `yaml:"heavy"`
	ScratchDir string `yaml:"scratch_dir"`
}

type DashboardConfig struct {
	Quantities  []string          `yaml:"quantities"`
	RunningMean RunningMeanConfig `yaml:"running_mean"`
}

type RunningMeanConfig struct {
	Enabled bool `yaml:"enabled"`
	Days    int  `yaml:"days"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8050},
		Data:   DataConfig{Path: "HealthManagerApp_DataExport.csv"},
		Dashboard: DashboardConfig{
			Quantities:  []string{"kg", "Body fat"},
			RunningMean: RunningMeanConfig{Enabled: true, Days: 7},
		},
		Tailscale: TailscaleConfig{Hostname: "scaledash"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides. A missing file leaves the defaults.
// Env vars use the prefix SCALEDASH_ and underscore-separated paths:
//
//	SCALEDASH_SERVER_HOST, SCALEDASH_SERVER_PORT (or HOST, PORT),
//	SCALEDASH_DATA_PATH, SCALEDASH_STORAGE_HEAVY, SCALEDASH_LOG_LEVEL,
//	SCALEDASH_TAILSCALE_ENABLED, SCALEDASH_TAILSCALE_HOSTNAME
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Plain HOST/PORT first so the prefixed variables win.
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCALEDASH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SCALEDASH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCALEDASH_DATA_PATH"); v != "" {
		cfg.Data.Path = v
	}
	if v := os.Getenv("SCALEDASH_STORAGE_HEAVY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.Heavy = b
		}
	}
	if v := os.Getenv("SCALEDASH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SCALEDASH_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("SCALEDASH_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if _, err := quantity.ParseList(c.Dashboard.Quantities); err != nil {
		return fmt.Errorf("dashboard.quantities: %w", err)
	}
	if d := c.Dashboard.RunningMean.Days; d < 1 || d > dashboard.MaxRunningMean {
		return fmt.Errorf("dashboard.running_mean.days must be in [1,%d], got %d", dashboard.MaxRunningMean, d)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}

// Quantities returns the quantities selected at startup.
func (c *Config) Quantities() []quantity.Quantity {
	qs, _ := quantity.ParseList(c.Dashboard.Quantities)
	return qs
}

// SlogLevel parses log.level (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Addr returns the host:port the plain listener binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
