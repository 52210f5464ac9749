// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/internal/errors"
	"github.com/kraklabs/skillscan/pkg/rescan"
	"github.com/kraklabs/skillscan/pkg/scan"
	"github.com/kraklabs/skillscan/pkg/storage"
)

// loadConfig loads skillscan's configuration from globals.Config, exiting
// the process on failure via errors.FatalError.
func loadConfig(globals GlobalFlags) config.Config {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load skillscan configuration",
			err.Error(),
			"check the path passed to --config, or omit it to use defaults",
			err,
		), globals.JSON)
	}
	return cfg
}

// newLogger builds the process-wide structured logger, quiet-aware per the
// teacher's --debug handling in cmd/cie/index.go.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	if globals.Quiet {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the sqlite-backed recorder when cfg.DatabaseURL is set,
// returning nil otherwise; recorderOf turns that nil into a nil
// scan.Recorder, which disables persistence.
func openStore(cfg config.Config, globals GlobalFlags) *storage.Store {
	if cfg.DatabaseURL == "" {
		return nil
	}
	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open scan result database",
			err.Error(),
			"check DATABASE_URL and that the containing directory is writable",
			err,
		), globals.JSON)
	}
	return store
}

// recorderOf adapts a possibly-nil *storage.Store to scan.Recorder: a typed
// nil pointer stored in an interface is non-nil, so the orchestrator must
// receive either a real interface value or a literal nil, never a nil
// *storage.Store boxed into Recorder.
func recorderOf(store *storage.Store) scan.Recorder {
	if store == nil {
		return nil
	}
	return store
}

// newOrchestrator builds a scan.Orchestrator wired against cfg and an
// optional persistence store.
func newOrchestrator(cfg config.Config, store *storage.Store, logger *slog.Logger) *scan.Orchestrator {
	return scan.NewOrchestrator(cfg, recorderOf(store), logger)
}

// newRescanScheduler builds a rescan.Scheduler against the given store,
// using the orchestrator itself as the Scanner.
func newRescanScheduler(cfg config.Config, store *storage.Store, orch *scan.Orchestrator, logger *slog.Logger) *rescan.Scheduler {
	return rescan.New(store, orch, store, rescan.Config{}, logger)
}

// ingestOnlyAdapter adapts pkg/scan.IngestOnly to the api.Ingester
// interface, so internal/api never imports pkg/scan directly.
type ingestOnlyAdapter struct {
	cfg    config.Config
	logger *slog.Logger
}

func (a ingestOnlyAdapter) IngestOnly(ctx context.Context, tarballURL string) (string, []string, func(), error) {
	return scan.IngestOnly(ctx, a.cfg, tarballURL, a.logger)
}
