// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package rescan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

type fakeSource struct {
	versions []StaleVersion
}

func (f *fakeSource) ListStale(ctx context.Context, limit int) ([]StaleVersion, error) {
	if limit < len(f.versions) {
		return f.versions[:limit], nil
	}
	return f.versions, nil
}

type fakeScanner struct {
	responses map[string]model.ScanResponse
}

func (f *fakeScanner) Run(ctx context.Context, req model.ScanRequest) (model.ScanResponse, error) {
	return f.responses[req.VersionID], nil
}

type fakeSink struct {
	events []string
}

func (f *fakeSink) RecordAuditEvent(ctx context.Context, versionID, scanID, previousStatus, newStatus string) error {
	f.events = append(f.events, versionID+":"+previousStatus+"->"+newStatus)
	return nil
}

func TestRescanBatchRecordsEventOnStatusChange(t *testing.T) {
	scanID := "scan-1"
	source := &fakeSource{versions: []StaleVersion{
		{VersionID: "v1", TarballURL: "https://example.com/v1.tgz", PreviousStatus: "completed"},
	}}
	scanner := &fakeScanner{responses: map[string]model.ScanResponse{
		"v1": {VersionID: "v1", Verdict: model.VerdictFail, ScanID: &scanID},
	}}
	sink := &fakeSink{}

	s := New(source, scanner, sink, Config{}, nil)
	processed := s.RescanOnce(context.Background())

	require.Equal(t, 1, processed)
	require.Equal(t, []string{"v1:completed->failed"}, sink.events)
}

func TestRescanBatchSkipsUnchangedStatus(t *testing.T) {
	scanID := "scan-2"
	source := &fakeSource{versions: []StaleVersion{
		{VersionID: "v2", TarballURL: "https://example.com/v2.tgz", PreviousStatus: "completed"},
	}}
	scanner := &fakeScanner{responses: map[string]model.ScanResponse{
		"v2": {VersionID: "v2", Verdict: model.VerdictPass, ScanID: &scanID},
	}}
	sink := &fakeSink{}

	s := New(source, scanner, sink, Config{}, nil)
	s.RescanOnce(context.Background())

	require.Empty(t, sink.events)
}

func TestStatusFromVerdict(t *testing.T) {
	require.Equal(t, "completed", statusFromVerdict(model.VerdictPass))
	require.Equal(t, "completed", statusFromVerdict(model.VerdictPassWithNotes))
	require.Equal(t, "flagged", statusFromVerdict(model.VerdictFlagged))
	require.Equal(t, "failed", statusFromVerdict(model.VerdictFail))
}
