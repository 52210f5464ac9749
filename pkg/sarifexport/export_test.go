// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package sarifexport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

func TestBuildProducesOneRunAndOneResultPerFinding(t *testing.T) {
	resp := model.ScanResponse{
		VersionID: "skill@1.0.0",
		Verdict:   model.VerdictFlagged,
		Findings: []model.Finding{
			{Stage: model.StageStaticCode, Severity: model.SeverityHigh, Type: "dangerous_call", Description: "os.system call", Location: "main.py:12", Tool: "pyast"},
			{Stage: model.StageInjection, Severity: model.SeverityMedium, Type: "role_hijack", Description: "attempts to override system role", Tool: "injection"},
		},
	}

	report, err := Build(resp)
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	require.Len(t, report.Runs[0].Results, 2)
	require.Len(t, report.Runs[0].Tool.Driver.Rules, 2)
}

func TestBuildCarriesEvidenceAsCodeFlowAndCorroborationAsProperties(t *testing.T) {
	resp := model.ScanResponse{
		VersionID: "skill@1.0.0",
		Verdict:   model.VerdictFlagged,
		Findings: []model.Finding{
			{
				Stage: model.StageSecrets, Severity: model.SeverityCritical,
				Type: "private_key", Description: "PEM-encoded private key",
				Location: "keys.pem:1", Tool: "stage4_signature + stage4_entropy",
				Evidence:           "-----BEGIN RSA...",
				Corroborated:       true,
				CorroborationCount: 2,
			},
			{
				Stage: model.StageSecrets, Severity: model.SeverityHigh,
				Type: "generic_api_key", Description: "generic API key assignment",
				Location: "config.py:4", Tool: "stage4_signature",
			},
		},
	}

	report, err := Build(resp)
	require.NoError(t, err)
	require.Len(t, report.Runs[0].Results, 2)

	withEvidence := report.Runs[0].Results[0]
	require.Len(t, withEvidence.CodeFlows, 1)
	require.Equal(t, true, withEvidence.Properties["corroborated"])
	require.Equal(t, 2, withEvidence.Properties["corroboration_count"])

	withoutEvidence := report.Runs[0].Results[1]
	require.Empty(t, withoutEvidence.CodeFlows)
	require.Equal(t, false, withoutEvidence.Properties["corroborated"])
}

func TestWriteProducesValidJSON(t *testing.T) {
	resp := model.ScanResponse{
		VersionID: "skill@1.0.0",
		Verdict:   model.VerdictPass,
		Findings:  nil,
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, resp))
	require.Contains(t, buf.String(), `2.1.0`)
}

func TestLocationForParsesPathAndLine(t *testing.T) {
	loc := locationFor("main.py:42")
	require.NotNil(t, loc)

	require.Nil(t, locationFor(""))
}

func TestPrecisionForBuckets(t *testing.T) {
	require.Equal(t, "very-high", precisionFor(0.95))
	require.Equal(t, "high", precisionFor(0.8))
	require.Equal(t, "medium", precisionFor(0.6))
	require.Equal(t, "low", precisionFor(0.2))
}
