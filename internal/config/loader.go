// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Loader reads configuration from an optional YAML file and merges
// environment overrides on top. Precedence: defaults < file < env.
type Loader struct {
	Path string // empty means env-only
}

// NewLoader builds a loader for the given path; empty means env-only.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load produces a validated configuration.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.Path != "" {
		raw, err := os.ReadFile(l.Path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", l.Path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", l.Path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv merges the supported COACHD_* overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COACHD_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("COACHD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("COACHD_TERMINATE_PASSWORD"); v != "" {
		cfg.Server.TerminatePassword = v
	}
	if v := os.Getenv("COACHD_MAX_CLIENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Session.MaximumClients = n
		}
	}
	if v := os.Getenv("COACHD_PHASE_CONFIG"); v != "" {
		cfg.Phase.ConfigFile = v
	}
	if v := os.Getenv("COACHD_ERROR_CONFIG"); v != "" {
		cfg.Error.ConfigFile = v
	}
	if v := os.Getenv("COACHD_TELEMETRY_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
}
