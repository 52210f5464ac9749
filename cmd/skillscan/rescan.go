// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/skillscan/internal/errors"
	"github.com/kraklabs/skillscan/internal/ui"
)

// runRescan executes the 'rescan' CLI command: one on-demand batch of the
// rescan scheduler, outside of the 'serve' ticker loop.
func runRescan(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("rescan", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skillscan rescan [options]

Re-scans the oldest-scanned stale versions (batch size 5) and records an
audit event for each one whose verdict-derived status changed.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals)
	logger := newLogger(globals)
	store := openStore(cfg, globals)
	if store == nil {
		errors.FatalError(errors.NewConfigError(
			"Rescan requires a configured database",
			"DATABASE_URL is unset, so there is no scan history to rescan",
			"set DATABASE_URL (or database_url in the config file) and try again",
			nil,
		), globals.JSON)
	}
	defer store.Close()

	orch := newOrchestrator(cfg, store, logger)
	scheduler := newRescanScheduler(cfg, store, orch, logger)

	processed := scheduler.RescanOnce(context.Background())
	ui.Successf("Rescanned %d version(s)", processed)
}
