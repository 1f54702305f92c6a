// Package config reads agent configuration from the environment with an
// optional .env overlay, plus a YAML chart profile for startup state.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chart agent.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Chart page
	ChartURL     string
	TabURLFilter string
	Symbol       string
	ProfilePath  string

	// Load behavior
	EvalTimeoutMS int
	LoadTimeoutMS int
	MaxReloads    int

	// Control API
	BindAddr string

	// Logging
	LogLevel string
	LogFile  string

	// Persistence
	SnapshotDir     string
	EventLogDir     string
	EventBufferSize int
	MaxFileSizeMB   int

	// Browser launch
	LaunchBrowser bool
	ProfileDir    string

	// Failure alerts; empty disables them.
	AlertEndpoint string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:      getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		ChartURL:        getEnvOrDefault("CHARTIQ_URL", "http://127.0.0.1:8080/chartiq/index.html"),
		TabURLFilter:    getEnvOrDefault("CHARTIQ_TAB_URL_FILTER", "chartiq"),
		Symbol:          getEnvOrDefault("CHARTIQ_SYMBOL", "AAPL"),
		ProfilePath:     getEnvOrDefault("CHARTIQ_PROFILE", "./config/chart_profile.yaml"),
		EvalTimeoutMS:   getEnvIntOrDefault("CHARTIQ_EVAL_TIMEOUT_MS", 5000),
		LoadTimeoutMS:   getEnvIntOrDefault("CHARTIQ_LOAD_TIMEOUT_MS", 60000),
		MaxReloads:      getEnvIntOrDefault("CHARTIQ_MAX_RELOADS", 2),
		BindAddr:        getEnvOrDefault("CHARTIQ_BIND_ADDR", "127.0.0.1:8188"),
		LogLevel:        strings.ToLower(getEnvOrDefault("CHARTIQ_LOG_LEVEL", "info")),
		LogFile:         getEnvOrDefault("CHARTIQ_LOG_FILE", "logs/chartiq_controller.log"),
		SnapshotDir:     getEnvOrDefault("CHARTIQ_SNAPSHOT_DIR", "./snapshots"),
		EventLogDir:     getEnvOrDefault("CHARTIQ_EVENT_LOG_DIR", "./chart_events"),
		EventBufferSize: getEnvIntOrDefault("CHARTIQ_EVENT_BUFFER_SIZE", 1024),
		MaxFileSizeMB:   getEnvIntOrDefault("CHARTIQ_MAX_FILE_SIZE_MB", 100),
		LaunchBrowser:   getEnvBoolOrDefault("CHARTIQ_LAUNCH_BROWSER", false),
		ProfileDir:      getEnvOrDefault("CHARTIQ_BROWSER_PROFILE_DIR", "./browser_profile"),
		AlertEndpoint:   getEnvOrDefault("CHARTIQ_ALERT_ENDPOINT", ""),
	}

	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.MaxReloads < 0 {
		cfg.MaxReloads = 0
	}
	if cfg.ChartURL == "" {
		return nil, fmt.Errorf("CHARTIQ_URL must not be empty")
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
