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

// shellRule is one line-based regex rule applied to shell scripts.
type shellRule struct {
	pattern     *regexp.Regexp
	severity    model.Severity
	findingType string
	description string
}

// shellRules is the frozen shell-script rulebook.
var shellRules = []shellRule{
	{regexp.MustCompile(`(curl|wget)\b[^|]*\|\s*(sudo\s+)?(bash|sh)\b`), model.SeverityCritical, "pipe_to_shell", "downloaded content piped directly into a shell"},
	{regexp.MustCompile(`\bchmod\s+(-R\s+)?777\b`), model.SeverityHigh, "insecure_permissions", "chmod 777 grants world read/write/execute"},
	{regexp.MustCompile(`\beval\s+`), model.SeverityCritical, "dynamic_eval", "eval of a constructed shell string"},
	{regexp.MustCompile(`\brm\s+-rf\s+/(\s|$)`), model.SeverityCritical, "destructive_command", "recursive delete rooted at /"},
	{regexp.MustCompile(`\bnc\s+-[a-z]*e\b`), model.SeverityHigh, "reverse_shell", "netcat invoked with an exec flag"},
	{regexp.MustCompile(`>\s*/dev/tcp/`), model.SeverityHigh, "reverse_shell", "bash /dev/tcp redirection"},
	{regexp.MustCompile(`\bsudo\b`), model.SeverityMedium, "privilege_escalation", "sudo invocation"},
}

// analyzeShell applies the shell regex rulebook to one file's lines.
func analyzeShell(rel string, content []byte) []model.Finding {
	var findings []model.Finding
	for lineNo, line := range strings.Split(string(content), "\n") {
		for _, rule := range shellRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, model.Finding{
					Stage: model.StageStaticCode, Severity: rule.severity,
					Type: rule.findingType, Description: rule.description,
					Location: rel + ":" + strconv.Itoa(lineNo+1),
					Tool:     "stage2_regex_shell",
					Evidence: truncateEvidence(strings.TrimSpace(line)),
				})
			}
		}
	}
	return findings
}
