// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/skillscan/pkg/model"
	"github.com/kraklabs/skillscan/pkg/rescan"
)

// schema is the complete scan-result schema, applied with CREATE TABLE IF
// NOT EXISTS so Open is idempotent against an already-initialised database.
const schema = `
CREATE TABLE IF NOT EXISTS scan_result (
    scan_id          TEXT PRIMARY KEY,
    version_id       TEXT NOT NULL,
    tarball_url      TEXT NOT NULL DEFAULT '',
    verdict          TEXT NOT NULL,
    critical_count   INTEGER NOT NULL DEFAULT 0,
    high_count       INTEGER NOT NULL DEFAULT 0,
    medium_count     INTEGER NOT NULL DEFAULT 0,
    low_count        INTEGER NOT NULL DEFAULT 0,
    stages_run       TEXT NOT NULL DEFAULT '',
    duration_ms      INTEGER NOT NULL DEFAULT 0,
    file_hashes_json TEXT NOT NULL DEFAULT '{}',
    created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_result_version ON scan_result(version_id, created_at DESC);

CREATE TABLE IF NOT EXISTS scan_finding (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    scan_id     TEXT NOT NULL REFERENCES scan_result(scan_id) ON DELETE CASCADE,
    stage       TEXT NOT NULL,
    severity    TEXT NOT NULL,
    type        TEXT NOT NULL,
    description TEXT NOT NULL,
    location    TEXT NOT NULL DEFAULT '',
    confidence  REAL NOT NULL DEFAULT 0.8,
    tool        TEXT NOT NULL DEFAULT '',
    evidence    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scan_finding_scan ON scan_finding(scan_id);

CREATE TABLE IF NOT EXISTS audit_event (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    version_id     TEXT NOT NULL,
    scan_id        TEXT NOT NULL,
    previous_status TEXT NOT NULL DEFAULT '',
    new_status     TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_event_version ON audit_event(version_id, created_at DESC);
`

// Store is skillscan's sqlite-backed implementation of scan.Recorder, plus
// the read paths the rescan scheduler needs to find stale versions.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) an sqlite database at path and applies
// the schema above, following the same pragma-then-schema shape as
// dbopen.Open in the pack: foreign keys and WAL mode on, a bounded busy
// timeout so concurrent rescan workers don't deadlock on SQLITE_BUSY.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordScan implements scan.Recorder: one scan_result row plus its
// scan_finding rows, inserted inside a single transaction.
func (s *Store) RecordScan(ctx context.Context, result model.ScanResultRecord, findings []model.FindingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	hashesJSON, err := json.Marshal(result.FileHashes)
	if err != nil {
		return fmt.Errorf("storage: marshal file hashes: %w", err)
	}

	stages := make([]string, len(result.StagesRun))
	for i, tag := range result.StagesRun {
		stages[i] = string(tag)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_result
			(scan_id, version_id, tarball_url, verdict, critical_count, high_count, medium_count, low_count,
			 stages_run, duration_ms, file_hashes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scan_id) DO UPDATE SET
			verdict=excluded.verdict, critical_count=excluded.critical_count,
			high_count=excluded.high_count, medium_count=excluded.medium_count,
			low_count=excluded.low_count, stages_run=excluded.stages_run,
			duration_ms=excluded.duration_ms, file_hashes_json=excluded.file_hashes_json`,
		result.ScanID, result.VersionID, result.TarballURL, string(result.Verdict),
		result.Counts.Critical, result.Counts.High, result.Counts.Medium, result.Counts.Low,
		strings.Join(stages, ","), result.DurationMS, string(hashesJSON), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert scan_result: %w", err)
	}

	for _, f := range findings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scan_finding
				(scan_id, stage, severity, type, description, location, confidence, tool, evidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ScanID, string(f.Stage), string(f.Severity), f.Type, f.Description,
			f.Location, f.Confidence, f.Tool, f.Evidence,
		)
		if err != nil {
			return fmt.Errorf("storage: insert scan_finding: %w", err)
		}
	}

	return tx.Commit()
}

// VersionSummary is the latest-scan summary the rescan scheduler consults to
// decide whether a version is stale.
type VersionSummary struct {
	VersionID  string
	Verdict    model.Verdict
	ScannedAt  time.Time
}

// LatestScans returns the most recent scan_result row per distinct
// version_id, ordered oldest-scanned-first so the rescan scheduler naturally
// processes the stalest versions before the freshest.
func (s *Store) LatestScans(ctx context.Context, limit int) ([]VersionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, verdict, MAX(created_at) AS created_at
		FROM scan_result
		GROUP BY version_id
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query latest scans: %w", err)
	}
	defer rows.Close()

	var out []VersionSummary
	for rows.Next() {
		var vs VersionSummary
		var verdict string
		var createdAtMS int64
		if err := rows.Scan(&vs.VersionID, &verdict, &createdAtMS); err != nil {
			return nil, fmt.Errorf("storage: scan latest scans row: %w", err)
		}
		vs.Verdict = model.Verdict(verdict)
		vs.ScannedAt = time.UnixMilli(createdAtMS)
		out = append(out, vs)
	}
	return out, rows.Err()
}

// ListStale implements rescan.VersionSource: the `limit` oldest-scanned
// versions, each paired with the tarball_url and verdict-derived status
// from its most recent scan.
func (s *Store) ListStale(ctx context.Context, limit int) ([]rescan.StaleVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.version_id, sr.tarball_url, sr.verdict
		FROM scan_result sr
		WHERE sr.rowid = (
			SELECT latest.rowid FROM scan_result latest
			WHERE latest.version_id = sr.version_id
			ORDER BY latest.created_at DESC, latest.rowid DESC
			LIMIT 1
		)
		ORDER BY sr.created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query stale versions: %w", err)
	}
	defer rows.Close()

	var out []rescan.StaleVersion
	for rows.Next() {
		var v rescan.StaleVersion
		var verdict string
		if err := rows.Scan(&v.VersionID, &v.TarballURL, &verdict); err != nil {
			return nil, fmt.Errorf("storage: scan stale version row: %w", err)
		}
		v.PreviousStatus = statusFromVerdict(model.Verdict(verdict))
		out = append(out, v)
	}
	return out, rows.Err()
}

// statusFromVerdict mirrors rescan's verdict-to-status mapping so ListStale
// can report a PreviousStatus without importing rescan's unexported helper.
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

// RecordAuditEvent inserts one audit_event row marking a verdict transition
// for a version, per the rescan scheduler's verdict-change contract.
func (s *Store) RecordAuditEvent(ctx context.Context, versionID, scanID, previousStatus, newStatus string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (version_id, scan_id, previous_status, new_status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		versionID, scanID, previousStatus, newStatus, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert audit_event: %w", err)
	}
	return nil
}
