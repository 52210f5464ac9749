// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads skillscan's runtime configuration: size and time
// budgets, the tarball-host allow-list, and the environment-derived paths
// and secrets named in the external interface. It follows the same
// YAML-plus-env-override shape as kraklabs/cie's ingestion configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Size and time budgets from the external interface.
const (
	MaxTarballSize      = 50 << 20 // 50 MiB
	MaxExtractedSize    = 50 << 20 // 50 MiB
	MaxCompressionRatio = 100
	MaxSingleFileSize   = 5 << 20 // 5 MiB

	DownloadTimeout = 30 * time.Second
	VulnLookupTimeout = 20 * time.Second

	MaxScanDuration = 55 * time.Second

	StageMinBudgetShort = 5 * time.Second  // S1, S3, S4
	StageMinBudgetLong  = 10 * time.Second // S2, S5
)

// Config is skillscan's resolved runtime configuration.
type Config struct {
	// SkillBaseDir roots the permission-extractor path (SKILL_BASE_DIR).
	SkillBaseDir string `yaml:"skill_base_dir"`

	// AllowedTarballHosts lists hostnames (or parent domains) that S0 may
	// download from. Loopback addresses are always implicitly allowed so
	// tests can serve fixtures over httptest.
	AllowedTarballHosts []string `yaml:"allowed_tarball_hosts"`

	// DatabaseURL, consumed by the scan.Recorder implementation in pkg/storage.
	DatabaseURL string `yaml:"database_url"`

	// CronSecret gates POST /api/analyze/rescan when non-empty.
	CronSecret string `yaml:"cron_secret"`

	// ListenAddr is the address the serve subcommand binds.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns skillscan's baseline configuration, mirroring
// ingestion.DefaultConfig()'s role in the teacher repository.
func Default() Config {
	return Config{
		SkillBaseDir:        "/workspace/skills",
		AllowedTarballHosts: []string{"skills-storage.example.com"},
		ListenAddr:          ":8080",
	}
}

// Load reads a YAML config file (if path is non-empty and exists) and then
// applies environment variable overrides, following the precedence the
// teacher's CLI subcommands use for flags: env beats file beats default.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SKILL_BASE_DIR"); v != "" {
		cfg.SkillBaseDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.CronSecret = v
	}
	if v := os.Getenv("SKILLSCAN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
}
