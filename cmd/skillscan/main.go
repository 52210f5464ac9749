// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the skillscan CLI: a standalone security scanner
// for AI-agent "skill" packages.
//
// Usage:
//
//	skillscan scan --tarball-url <url> --version-id <id>
//	skillscan serve --listen :8080
//	skillscan rescan
//	skillscan permissions --tarball-url <url>
//	skillscan health --addr <url>
//	skillscan version
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/skillscan/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags carries the flags every subcommand respects.
type GlobalFlags struct {
	JSON     bool
	Quiet    bool
	NoColor  bool
	Config   string
}

func main() {
	var globals GlobalFlags

	fs := flag.NewFlagSet("skillscan", flag.ContinueOnError)
	fs.BoolVar(&globals.JSON, "json", false, "Output as JSON")
	fs.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.StringVar(&globals.Config, "config", "", "Path to skillscan config file")
	showVersion := fs.BoolP("version", "v", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `skillscan - security scanner for AI-agent skill packages

Usage:
  skillscan <command> [options]

Commands:
  scan          Run the full S0..S5 pipeline against a tarball
  serve         Start the HTTP API server
  rescan        Run one on-demand rescan batch
  permissions   Infer a skill's exercised capabilities
  health        Check a running server's health endpoint
  version       Show version and exit

Global Options:
`)
		fs.PrintDefaults()
	}

	fs.SetInterspersed(false)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	ui.InitColors(globals.NoColor)

	if *showVersion {
		runVersion(nil, globals)
		return
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	command := rest[0]
	cmdArgs := rest[1:]

	switch command {
	case "scan":
		runScan(cmdArgs, globals)
	case "serve":
		runServe(cmdArgs, globals)
	case "rescan":
		runRescan(cmdArgs, globals)
	case "permissions":
		runPermissions(cmdArgs, globals)
	case "health":
		runHealth(cmdArgs, globals)
	case "version":
		runVersion(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		os.Exit(1)
	}
}
