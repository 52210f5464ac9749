// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package sarifexport renders a model.ScanResponse as a SARIF 2.1.0 log,
// letting a scan's findings flow into any tool that already consumes SARIF
// (GitHub code scanning, most CI annotators). One run is emitted per scan,
// one SARIF rule per distinct (stage, finding type) pair, and one result per
// finding.
package sarifexport
