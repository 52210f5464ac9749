// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package scan implements skillscan's staged security-analysis pipeline for
// AI-agent skill packages.
//
// A scan runs six stages in strict sequence over a shared sandbox
// directory:
//
//	S0 Ingest          download, safety-check, and extract the tarball
//	S1 Structure       Unicode/encoding/structural checks over text files
//	S2 Static Analysis AST + regex code review, permission cross-check
//	S3 Injection       prompt-injection pattern library over Markdown
//	S4 Secrets         signature and entropy-based secret detection
//	S5 Supply Chain    manifest parsing, typosquat and vulnerability checks
//
// The Orchestrator drives the sequence, enforces a wall-clock budget across
// stages, deduplicates findings across tools, and computes a verdict. Every
// stage returns a model.StageResult rather than raising — failures are data,
// never control flow, so a single misbehaving stage can never abort a scan.
//
// # Quick start
//
//	orch := scan.NewOrchestrator(config.Default(), nil, logger)
//	resp, err := orch.Run(ctx, model.ScanRequest{
//	    TarballURL: "https://skills-storage.example.com/pkg.tar.gz",
//	    VersionID:  "v1",
//	})
package scan
