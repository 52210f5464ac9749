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
	"github.com/kraklabs/skillscan/internal/output"
	"github.com/kraklabs/skillscan/internal/ui"
	"github.com/kraklabs/skillscan/pkg/permextract"
)

// runPermissions executes the 'permissions' CLI command: download and
// extract a tarball, then statically infer its exercised capabilities.
func runPermissions(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("permissions", flag.ExitOnError)
	tarballURL := fs.String("tarball-url", "", "Tarball URL to inspect (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skillscan permissions --tarball-url <url> [options]

Downloads and extracts a skill package tarball, then statically infers
the network, filesystem, subprocess, and environment variable access it
actually exercises.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *tarballURL == "" {
		errors.FatalError(errors.NewInputError(
			"Invalid tarball URL",
			"--tarball-url is required",
			"point --tarball-url at the configured skill storage host",
		), globals.JSON)
	}

	cfg := loadConfig(globals)
	logger := newLogger(globals)

	root, fileList, cleanup, err := ingestOnlyAdapter{cfg: cfg, logger: logger}.IngestOnly(context.Background(), *tarballURL)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Cannot download skill package",
			err.Error(),
			"verify the tarball URL is reachable and allow-listed, and try again",
			err,
		), globals.JSON)
	}
	defer cleanup()

	perms, err := permextract.Extract(root, fileList)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(perms); err != nil {
			errors.FatalError(err, globals.JSON)
		}
		return
	}

	ui.Header("Inferred permissions")
	fmt.Printf("%s %v\n", ui.Label("Network outbound:"), perms.NetworkOutbound)
	fmt.Printf("%s %v\n", ui.Label("Filesystem read:"), perms.FilesystemRead)
	fmt.Printf("%s %v\n", ui.Label("Filesystem write:"), perms.FilesystemWrite)
	fmt.Printf("%s %v\n", ui.Label("Subprocess:"), perms.Subprocess)
	fmt.Printf("%s %v\n", ui.Label("Environment:"), perms.Environment)
}
