// Package config loads orchestrator configuration from built-in defaults,
// an optional conductor.toml file, and environment variable overrides, in
// that order.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds the orchestrator's runtime configuration.
type Config struct {
	WorktreeBaseDir      string `toml:"worktreeBaseDir"`
	AgentCliPath         string `toml:"agentCliPath"`
	GitPath              string `toml:"gitPath"`
	DatabasePath         string `toml:"databasePath"`
	OrchestratorPort     int    `toml:"orchestratorPort"`
	OrchestratorURL      string `toml:"orchestratorURL"`
	WorkerPollIntervalMs int    `toml:"workerPollIntervalMs"`
	WorkerConcurrency    int    `toml:"workerConcurrency"`
	AgentTimeoutMs       int    `toml:"agentTimeoutMs"`
	CleanupCron          string `toml:"cleanupCron"`
	AgentReasoningEffort string `toml:"agentReasoningEffort"`
	LogLevel             string `toml:"logLevel"`
}

// Load builds a Config from defaults, then an optional TOML file at path
// (skipped silently if it doesn't exist), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// envOverrides maps environment variables to config field setters. Invalid
// numeric values are ignored, leaving the prior value (default or file) in
// place.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{"CONDUCTOR_WORKTREE_BASE_DIR", func(c *Config, v string) { c.WorktreeBaseDir = v }},
	{"CONDUCTOR_AGENT_CLI_PATH", func(c *Config, v string) { c.AgentCliPath = v }},
	{"CONDUCTOR_GIT_PATH", func(c *Config, v string) { c.GitPath = v }},
	{"CONDUCTOR_DATABASE_PATH", func(c *Config, v string) { c.DatabasePath = v }},
	{"CONDUCTOR_ORCHESTRATOR_URL", func(c *Config, v string) { c.OrchestratorURL = v }},
	{"CONDUCTOR_CLEANUP_CRON", func(c *Config, v string) { c.CleanupCron = v }},
	{"CONDUCTOR_AGENT_REASONING_EFFORT", func(c *Config, v string) { c.AgentReasoningEffort = v }},
	{"CONDUCTOR_LOG_LEVEL", func(c *Config, v string) { c.LogLevel = v }},
	{"CONDUCTOR_ORCHESTRATOR_PORT", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.OrchestratorPort = n
		}
	}},
	{"CONDUCTOR_WORKER_POLL_INTERVAL_MS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerPollIntervalMs = n
		}
	}},
	{"CONDUCTOR_WORKER_CONCURRENCY", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerConcurrency = n
		}
	}},
	{"CONDUCTOR_AGENT_TIMEOUT_MS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.AgentTimeoutMs = n
		}
	}},
}

func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}
