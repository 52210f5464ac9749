// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package rescan

import (
	"context"
	"log/slog"
	"time"

	"github.com/kraklabs/skillscan/pkg/model"
)

// StaleVersion is one version eligible for a rescan, as surfaced by a
// VersionSource.
type StaleVersion struct {
	VersionID      string
	TarballURL     string
	PreviousStatus string
}

// VersionSource lists versions due for a rescan, oldest-scanned-first.
type VersionSource interface {
	ListStale(ctx context.Context, limit int) ([]StaleVersion, error)
}

// Scanner runs the full scan pipeline. *scan.Orchestrator satisfies this.
type Scanner interface {
	Run(ctx context.Context, req model.ScanRequest) (model.ScanResponse, error)
}

// AuditSink receives one event per verdict-derived status change.
type AuditSink interface {
	RecordAuditEvent(ctx context.Context, versionID, scanID, previousStatus, newStatus string) error
}

// Config configures the rescan scheduler.
type Config struct {
	// CheckInterval is how often to look for due versions. Default: 10 minutes.
	CheckInterval time.Duration
	// BatchSize bounds how many versions are rescanned per poll. Default: 5.
	BatchSize int
}

func (c *Config) defaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
}

// statusFromVerdict maps a scan verdict onto the audit-status vocabulary:
// pass and pass_with_notes both resolve to "completed" since neither blocks
// a version from being served.
func statusFromVerdict(v model.Verdict) string {
	switch v {
	case model.VerdictPass, model.VerdictPassWithNotes:
		return "completed"
	case model.VerdictFlagged:
		return "flagged"
	case model.VerdictFail:
		return "failed"
	default:
		return "completed"
	}
}

// Scheduler periodically rescans stale versions and records status changes.
type Scheduler struct {
	source  VersionSource
	scanner Scanner
	sink    AuditSink
	config  Config
	logger  *slog.Logger
}

// New creates a Scheduler.
func New(source VersionSource, scanner Scanner, sink AuditSink, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{source: source, scanner: scanner, sink: sink, config: cfg, logger: logger}
}

// Run polls for due versions on a ticker, rescanning each batch serially.
// Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.rescanBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rescanBatch(ctx)
		}
	}
}

// RescanOnce runs a single batch immediately, for callers (the "rescan"
// CLI subcommand, the POST /api/analyze/rescan endpoint) that want an
// on-demand pass rather than the ticker loop.
func (s *Scheduler) RescanOnce(ctx context.Context) int {
	return s.rescanBatch(ctx)
}

// rescanBatch pulls up to BatchSize stale versions and rescans them one at
// a time. Versions are processed serially, not concurrently: a rescan
// shares the same tarball-download and sandbox budget as a live scan, and
// running several at once would multiply disk and network pressure for no
// benefit to a background job.
func (s *Scheduler) rescanBatch(ctx context.Context) int {
	versions, err := s.source.ListStale(ctx, s.config.BatchSize)
	if err != nil {
		s.logger.Error("rescan.list_stale.failed", "error", err)
		return 0
	}

	processed := 0
	for _, v := range versions {
		s.rescanOne(ctx, v)
		processed++
	}
	if processed > 0 {
		s.logger.Info("rescan.batch.complete", "processed", processed)
	}
	return processed
}

func (s *Scheduler) rescanOne(ctx context.Context, v StaleVersion) {
	req := model.ScanRequest{TarballURL: v.TarballURL, VersionID: v.VersionID}

	resp, err := s.scanner.Run(ctx, req)
	if err != nil {
		s.logger.Warn("rescan.scan.failed", "version_id", v.VersionID, "error", err)
		return
	}

	newStatus := statusFromVerdict(resp.Verdict)
	if newStatus == v.PreviousStatus {
		return
	}

	scanID := ""
	if resp.ScanID != nil {
		scanID = *resp.ScanID
	}

	if err := s.sink.RecordAuditEvent(ctx, v.VersionID, scanID, v.PreviousStatus, newStatus); err != nil {
		s.logger.Error("rescan.audit.failed", "version_id", v.VersionID, "error", err)
		return
	}

	s.logger.Info("rescan.status_changed", "version_id", v.VersionID, "previous", v.PreviousStatus, "new", newStatus)
}
