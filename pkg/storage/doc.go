// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package storage implements skillscan's default scan.Recorder against an
// embedded modernc.org/sqlite database: a scan_result row per completed
// scan plus its scan_finding rows, exactly the two logical records named in
// the external interface. Persistence is opaque to the scan pipeline — the
// orchestrator depends only on the scan.Recorder interface, so a caller can
// swap this package for a different backend without touching pkg/scan.
package storage
