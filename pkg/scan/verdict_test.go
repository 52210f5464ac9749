// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/skillscan/pkg/model"
)

func sevFindings(n int, sev model.Severity) []model.Finding {
	out := make([]model.Finding, n)
	for i := range out {
		out[i] = model.Finding{Severity: sev}
	}
	return out
}

func TestComputeVerdictCriticalFails(t *testing.T) {
	assert.Equal(t, model.VerdictFail, ComputeVerdict(sevFindings(1, model.SeverityCritical)))
}

func TestComputeVerdictFourHighFails(t *testing.T) {
	assert.Equal(t, model.VerdictFail, ComputeVerdict(sevFindings(4, model.SeverityHigh)))
}

func TestComputeVerdictFewHighFlagged(t *testing.T) {
	assert.Equal(t, model.VerdictFlagged, ComputeVerdict(sevFindings(2, model.SeverityHigh)))
}

func TestComputeVerdictMediumPassWithNotes(t *testing.T) {
	assert.Equal(t, model.VerdictPassWithNotes, ComputeVerdict(sevFindings(1, model.SeverityMedium)))
}

func TestComputeVerdictEmptyPasses(t *testing.T) {
	assert.Equal(t, model.VerdictPass, ComputeVerdict(nil))
}
