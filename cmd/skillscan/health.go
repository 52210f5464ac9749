// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/skillscan/internal/errors"
	"github.com/kraklabs/skillscan/internal/ui"
)

// runHealth executes the 'health' CLI command: a GET against a running
// server's health endpoint.
func runHealth(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Base address of a running skillscan server")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skillscan health [options]

Checks a running skillscan server's /api/analyze/scan/health endpoint.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/api/analyze/scan/health")
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Cannot reach skillscan server",
			err.Error(),
			"check --addr and that the server is running",
			err,
		), globals.JSON)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errors.FatalError(errors.NewNetworkError(
			"skillscan server is unhealthy",
			fmt.Sprintf("health endpoint returned status %d", resp.StatusCode),
			"check server logs for the underlying failure",
			nil,
		), globals.JSON)
	}

	ui.Success("skillscan server is healthy")
}
