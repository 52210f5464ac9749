// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordScanPersistsResultAndFindings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := model.ScanResultRecord{
		ScanID:     "scan-1",
		VersionID:  "skill@1.0.0",
		Verdict:    model.VerdictFlagged,
		Counts:     model.SeverityCounts{High: 1, Medium: 2},
		StagesRun:  []model.StageTag{model.StageStructure, model.StageStaticCode},
		DurationMS: 1234,
		FileHashes: map[string]string{"main.py": "deadbeef"},
	}
	findings := []model.FindingRecord{
		{Stage: model.StageStaticCode, Severity: model.SeverityHigh, Type: "dangerous_call", Description: "os.system", Location: "main.py:3", Confidence: 0.9, Tool: "pyast"},
	}

	require.NoError(t, s.RecordScan(ctx, record, findings))

	var verdict string
	var findingCount int
	require.NoError(t, s.db.QueryRow(`SELECT verdict FROM scan_result WHERE scan_id = ?`, "scan-1").Scan(&verdict))
	require.Equal(t, "flagged", verdict)

	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM scan_finding WHERE scan_id = ?`, "scan-1").Scan(&findingCount))
	require.Equal(t, 1, findingCount)
}

func TestRecordScanUpsertsOnDuplicateScanID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := model.ScanResultRecord{ScanID: "scan-dup", VersionID: "v1", Verdict: model.VerdictPass}
	require.NoError(t, s.RecordScan(ctx, record, nil))

	record.Verdict = model.VerdictFail
	require.NoError(t, s.RecordScan(ctx, record, nil))

	var verdict string
	require.NoError(t, s.db.QueryRow(`SELECT verdict FROM scan_result WHERE scan_id = ?`, "scan-dup").Scan(&verdict))
	require.Equal(t, "fail", verdict)

	var rowCount int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM scan_result WHERE scan_id = ?`, "scan-dup").Scan(&rowCount))
	require.Equal(t, 1, rowCount)
}

func TestLatestScansReturnsOneRowPerVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, scanID := range []string{"scan-a", "scan-b"} {
		require.NoError(t, s.RecordScan(ctx, model.ScanResultRecord{
			ScanID: scanID, VersionID: scanID, Verdict: model.VerdictPass,
		}, nil))
		_ = i
	}

	summaries, err := s.LatestScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
}

func TestListStaleReturnsLatestPerVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordScan(ctx, model.ScanResultRecord{
		ScanID: "scan-old", VersionID: "v1", TarballURL: "https://example.com/v1-0.tgz", Verdict: model.VerdictPass,
	}, nil))
	require.NoError(t, s.RecordScan(ctx, model.ScanResultRecord{
		ScanID: "scan-new", VersionID: "v1", TarballURL: "https://example.com/v1-1.tgz", Verdict: model.VerdictFlagged,
	}, nil))

	stale, err := s.ListStale(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "flagged", stale[0].PreviousStatus)
}

func TestRecordAuditEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAuditEvent(ctx, "v1", "scan-1", "completed", "flagged"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM audit_event WHERE version_id = ?`, "v1").Scan(&count))
	require.Equal(t, 1, count)
}
