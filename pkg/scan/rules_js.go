// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kraklabs/skillscan/pkg/model"
)

// jsRule is one line-based regex rule for the JS/TS regex rulebook.
type jsRule struct {
	pattern     *regexp.Regexp
	severity    model.Severity
	findingType string
	description string
}

// jsRules is the frozen JS/TS rulebook, keyed by nothing (applied in
// order); each match is one Finding with location path:line.
var jsRules = []jsRule{
	{regexp.MustCompile(`\beval\s*\(`), model.SeverityCritical, "dynamic_eval", "eval() invocation"},
	{regexp.MustCompile(`\bnew\s+Function\s*\(`), model.SeverityCritical, "dynamic_eval", "new Function() constructs code from a string"},
	{regexp.MustCompile(`child_process\.exec\w*\s*\(`), model.SeverityHigh, "subprocess_call", "child_process execution"},
	{regexp.MustCompile(`\bspawn\s*\([^)]*shell\s*:\s*true`), model.SeverityHigh, "subprocess_call", "spawn invoked with shell:true"},
	{regexp.MustCompile(`\bfetch\s*\(`), model.SeverityMedium, "network_call", "outbound fetch() request"},
	{regexp.MustCompile(`\bXMLHttpRequest\b`), model.SeverityMedium, "network_call", "XMLHttpRequest usage"},
	{regexp.MustCompile(`require\(['"]child_process['"]\)`), model.SeverityHigh, "subprocess_call", "child_process module required"},
	{regexp.MustCompile(`\.ssh\b`), model.SeverityHigh, "sensitive_path_access", "reference to .ssh directory"},
	{regexp.MustCompile(`\.aws\b`), model.SeverityHigh, "sensitive_path_access", "reference to .aws directory"},
	{regexp.MustCompile(`(^|[^.\w])\.env\b`), model.SeverityMedium, "sensitive_path_access", "reference to .env file"},
	{regexp.MustCompile(`\.config\b`), model.SeverityLow, "sensitive_path_access", "reference to .config directory"},
}

// analyzeJS applies the JS/TS regex rulebook to one file's lines.
func analyzeJS(rel string, content []byte) []model.Finding {
	var findings []model.Finding
	for lineNo, line := range strings.Split(string(content), "\n") {
		for _, rule := range jsRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, model.Finding{
					Stage: model.StageStaticCode, Severity: rule.severity,
					Type: rule.findingType, Description: rule.description,
					Location: rel + ":" + strconv.Itoa(lineNo+1),
					Tool:     "stage2_regex_js",
					Evidence: truncateEvidence(strings.TrimSpace(line)),
				})
			}
		}
	}
	return findings
}
