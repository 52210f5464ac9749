// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

func TestDedupeMergesCorroboratedShellInjection(t *testing.T) {
	findings := []model.Finding{
		{Stage: model.StageStaticCode, Severity: model.SeverityHigh, Type: "shell_injection", Location: "a.py:10", Tool: "stage2_ast"},
		{Stage: model.StageStaticCode, Severity: model.SeverityHigh, Type: "shell_injection", Location: "a.py:10", Tool: "bandit"},
	}

	out := Dedupe(findings)
	require.Len(t, out, 1)
	assert.Equal(t, "bandit + stage2_ast", out[0].Tool)
	assert.True(t, out[0].Corroborated)
	assert.Equal(t, 2, out[0].CorroborationCount)
	assert.GreaterOrEqual(t, out[0].ConfidenceOrDefault(), 0.9)
}

func TestDedupeDistinctLocationsNotMerged(t *testing.T) {
	findings := []model.Finding{
		{Severity: model.SeverityHigh, Type: "shell_injection", Location: "a.py:10"},
		{Severity: model.SeverityHigh, Type: "shell_injection", Location: "b.py:10"},
	}
	out := Dedupe(findings)
	require.Len(t, out, 2)
}

func TestDedupePreservesInputOrderOfPrimaries(t *testing.T) {
	findings := []model.Finding{
		{Severity: model.SeverityLow, Type: "hidden_dotfile", Location: ".mystery"},
		{Severity: model.SeverityCritical, Type: "bidi_override", Location: "SKILL.md:1"},
	}
	out := Dedupe(findings)
	require.Len(t, out, 2)
	assert.Equal(t, "hidden_dotfile", out[0].Type)
	assert.Equal(t, "bidi_override", out[1].Type)
}

func TestDedupeUnrelatedTypesNotMerged(t *testing.T) {
	findings := []model.Finding{
		{Severity: model.SeverityMedium, Type: "hidden_dotfile", Location: "a.py:1"},
		{Severity: model.SeverityMedium, Type: "loose_version_range", Location: "a.py:2"},
	}
	out := Dedupe(findings)
	require.Len(t, out, 2)
}
