// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, Severity("bogus").Rank(), SeverityLow.Rank())
}

func TestFindingConfidenceOrDefault(t *testing.T) {
	f := Finding{Type: "x"}
	assert.Equal(t, DefaultConfidence, f.ConfidenceOrDefault())

	f.Confidence = Ptr(0.42)
	assert.Equal(t, 0.42, f.ConfidenceOrDefault())
}

func TestStageResultHasCritical(t *testing.T) {
	r := StageResult{Findings: []Finding{{Severity: SeverityLow}}}
	assert.False(t, r.HasCritical())

	r.Findings = append(r.Findings, Finding{Severity: SeverityCritical})
	assert.True(t, r.HasCritical())
}

func TestScanRequestValidate(t *testing.T) {
	require.Error(t, ScanRequest{}.Validate())
	require.Error(t, ScanRequest{TarballURL: "https://x"}.Validate())
	require.NoError(t, ScanRequest{TarballURL: "https://x", VersionID: "v1"}.Validate())
}

func TestCountSeverities(t *testing.T) {
	c := CountSeverities([]Finding{
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
		{Severity: SeverityLow},
	})
	assert.Equal(t, SeverityCounts{Critical: 1, High: 2, Medium: 1, Low: 2}, c)
}
