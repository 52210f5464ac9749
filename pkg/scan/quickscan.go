// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import "github.com/kraklabs/skillscan/pkg/model"

// QuickScan runs the regex-only portion of the pipeline (S2's JS/shell
// rulebooks plus S3's prompt-injection pattern library) directly against an
// in-memory string, with no tarball download and no sandbox. It backs
// POST /api/analyze/security, where a caller wants a fast verdict on a
// snippet of skill content rather than a full scan of a tarball.
func QuickScan(content string) []model.Finding {
	var findings []model.Finding
	findings = append(findings, analyzeJS("inline", []byte(content))...)
	findings = append(findings, analyzeShell("inline", []byte(content))...)
	findings = append(findings, scanMarkdownFile("inline", content)...)
	return Dedupe(findings)
}
