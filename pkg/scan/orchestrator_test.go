// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltest "github.com/kraklabs/skillscan/internal/testing"
	"github.com/kraklabs/skillscan/pkg/model"
)

type recordingRecorder struct {
	calls int
	last  model.ScanResultRecord
}

func (r *recordingRecorder) RecordScan(_ context.Context, result model.ScanResultRecord, _ []model.FindingRecord) error {
	r.calls++
	r.last = result
	return nil
}

func TestOrchestratorRunCleanSkill(t *testing.T) {
	data := skilltest.BuildTarball(t, []skilltest.TarEntry{
		{Name: "SKILL.md", Body: "# A skill\n\nThis skill reformats text.\n"},
		{Name: "main.py", Body: "print('hello')\n"},
	})
	url := skilltest.ServeTarball(t, data)

	recorder := &recordingRecorder{}
	orch := NewOrchestrator(testConfig(), recorder, nil)

	resp, err := orch.Run(context.Background(), model.ScanRequest{TarballURL: url, VersionID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictPass, resp.Verdict)
	assert.Equal(t, 1, recorder.calls)
	assert.NotNil(t, resp.ScanID)
	assert.Len(t, resp.StageResults, 6) // S0 + S1..S5
}

func TestOrchestratorRunIngestFailureShortCircuits(t *testing.T) {
	orch := NewOrchestrator(testConfig(), nil, nil)

	resp, err := orch.Run(context.Background(), model.ScanRequest{
		TarballURL: "https://unreachable.invalid/pkg.tar.gz", VersionID: "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictFail, resp.Verdict)
	assert.Len(t, resp.StageResults, 1) // only S0 ran
}

func TestOrchestratorRunValidatesRequest(t *testing.T) {
	orch := NewOrchestrator(testConfig(), nil, nil)
	_, err := orch.Run(context.Background(), model.ScanRequest{})
	require.Error(t, err)
}
