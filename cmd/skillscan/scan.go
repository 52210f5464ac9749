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
	"github.com/kraklabs/skillscan/pkg/model"
	"github.com/kraklabs/skillscan/pkg/sarifexport"
)

// runScan executes the 'scan' CLI command: the full S0..S5 pipeline
// against one tarball.
//
// Flags:
//   - --tarball-url: the skill package tarball to scan (required)
//   - --version-id: the version identifier to record the result under (required)
//   - --json (global, given before "scan"): output the full ScanResponse as JSON
//   - --format: "text" (default), "json", or "sarif" (a SARIF 2.1.0 log on stdout)
//
// Examples:
//
//	skillscan scan --tarball-url https://skills-storage.example.com/a.tgz --version-id my-skill@1.0.0
//	skillscan scan --tarball-url https://skills-storage.example.com/a.tgz --version-id my-skill@1.0.0 --format sarif
func runScan(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	tarballURL := fs.String("tarball-url", "", "Tarball URL to scan (required)")
	versionID := fs.String("version-id", "", "Version identifier for this scan (required)")
	format := fs.String("format", "text", "Output format: text, json, or sarif")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skillscan scan --tarball-url <url> --version-id <id> [options]

Runs the full S0..S5 pipeline against a skill package tarball and prints
the resulting verdict and findings.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *tarballURL == "" || *versionID == "" {
		errors.FatalError(errors.NewInputError(
			"Invalid scan request",
			"--tarball-url and --version-id are both required",
			"pass both flags, e.g. skillscan scan --tarball-url <url> --version-id <id>",
		), globals.JSON)
	}

	cfg := loadConfig(globals)
	logger := newLogger(globals)
	store := openStore(cfg, globals)
	if store != nil {
		defer store.Close()
	}

	orch := newOrchestrator(cfg, store, logger)

	resp, err := orch.Run(context.Background(), model.ScanRequest{TarballURL: *tarballURL, VersionID: *versionID})
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Scan request rejected",
			err.Error(),
			"check --tarball-url and --version-id",
		), globals.JSON)
	}

	switch *format {
	case "sarif":
		if err := sarifexport.Write(os.Stdout, resp); err != nil {
			errors.FatalError(errors.NewInternalError(
				"Failed to render SARIF output",
				err.Error(),
				"this is a bug in skillscan; please report it",
				err,
			), globals.JSON)
		}
	case "json":
		if err := output.JSON(resp); err != nil {
			errors.FatalError(err, globals.JSON)
		}
	default:
		if globals.JSON {
			if err := output.JSON(resp); err != nil {
				errors.FatalError(err, globals.JSON)
			}
			return
		}
		printScanResponse(resp)
	}
}

func printScanResponse(resp model.ScanResponse) {
	ui.Header("skillscan scan results")
	fmt.Printf("%s %s\n", ui.Label("Version ID:"), resp.VersionID)

	switch resp.Verdict {
	case model.VerdictPass:
		ui.Successf("Verdict: %s", resp.Verdict)
	case model.VerdictPassWithNotes:
		ui.Warningf("Verdict: %s", resp.Verdict)
	case model.VerdictFlagged, model.VerdictFail:
		ui.Errorf("Verdict: %s", resp.Verdict)
	}

	fmt.Printf("%s %sms\n", ui.Label("Duration:"), ui.CountText(int(resp.DurationMS)))
	fmt.Printf("%s %s\n", ui.Label("Findings:"), ui.CountText(len(resp.Findings)))

	for _, sr := range resp.StageResults {
		if sr.Status == model.StatusSkipped {
			ui.Warningf("Skipped %s: budget exhausted", sr.Stage)
		}
	}

	for _, f := range resp.Findings {
		fmt.Printf("  [%s] %s: %s (%s)\n", f.Severity, f.Type, f.Description, f.Location)
	}
}
