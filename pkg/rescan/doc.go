// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package rescan periodically re-runs the scan pipeline against previously
// scanned skill versions and records an audit event whenever a version's
// verdict-derived status changes. Versions are pulled from a VersionSource,
// re-scanned through a Scanner, and processed serially in small batches, one
// scan at a time, so a batch never multiplies download and disk load.
package rescan
