// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kraklabs/skillscan/pkg/model"
)

var (
	pythonExtensions = map[string]bool{".py": true}
	jsExtensions     = map[string]bool{".js": true, ".ts": true, ".jsx": true, ".tsx": true}
	shellExtensions  = map[string]bool{".sh": true, ".bash": true}
)

// RunStaticAnalysis implements S2: per-language AST/regex analysis of every
// source file in the sandbox, followed by a cross-check of the findings
// against the package's declared Permissions.
func RunStaticAnalysis(ctx context.Context, sb *Sandbox) model.StageResult {
	return timed(model.StageStaticCode, func() (model.StageStatus, []model.Finding, string) {
		var findings []model.Finding

		for _, rel := range sb.FileList {
			ext := strings.ToLower(filepath.Ext(rel))
			switch {
			case pythonExtensions[ext]:
				raw, err := sb.ReadFile(rel)
				if err != nil {
					findings = append(findings, analysisErrorFinding(rel))
					continue
				}
				findings = append(findings, analyzePython(ctx, rel, raw)...)
			case jsExtensions[ext]:
				raw, err := sb.ReadFile(rel)
				if err != nil {
					findings = append(findings, analysisErrorFinding(rel))
					continue
				}
				findings = append(findings, analyzeJS(rel, raw)...)
			case shellExtensions[ext]:
				raw, err := sb.ReadFile(rel)
				if err != nil {
					findings = append(findings, analysisErrorFinding(rel))
					continue
				}
				findings = append(findings, analyzeShell(rel, raw)...)
			}
		}

		findings = append(findings, crossCheckPermissions(sb.Request.Permissions, findings)...)

		return statusFromFindings(findings), findings, ""
	})
}

func analysisErrorFinding(rel string) model.Finding {
	return model.Finding{
		Stage: model.StageStaticCode, Severity: model.SeverityLow,
		Type: "analysis_error", Description: "file could not be read for static analysis",
		Location: rel, Tool: "stage2",
	}
}

// crossCheckPermissions compares the network/subprocess activity observed by
// the language analyzers against what the package declared, emitting one
// finding per undeclared capability actually exercised in code.
func crossCheckPermissions(declared model.Permissions, findings []model.Finding) []model.Finding {
	var networkSeen, subprocessSeen bool
	for _, f := range findings {
		if networkCallTypes[f.Type] {
			networkSeen = true
		}
		if subprocessCallTypes[f.Type] {
			subprocessSeen = true
		}
	}

	var out []model.Finding
	if networkSeen && len(declared.NetworkOutbound) == 0 {
		out = append(out, model.Finding{
			Stage: model.StageStaticCode, Severity: model.SeverityHigh,
			Type:        "undeclared_network",
			Description: "code performs network calls but declares no network_outbound permission",
			Tool:        "stage2_permission_check",
		})
	}
	if subprocessSeen && !declared.Subprocess {
		out = append(out, model.Finding{
			Stage: model.StageStaticCode, Severity: model.SeverityHigh,
			Type:        "undeclared_subprocess",
			Description: "code spawns subprocesses but does not declare the subprocess permission",
			Tool:        "stage2_permission_check",
		})
	}
	return out
}
