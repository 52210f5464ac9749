// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package api wires skillscan's HTTP surface: a chi router exposing the
// five endpoints the orchestrator, permission extractor, and rescan
// scheduler are reached through. Handlers are thin — they decode a
// request, call into pkg/scan, pkg/permextract, or pkg/rescan, and encode
// the result as JSON with encoding/json.
package api
