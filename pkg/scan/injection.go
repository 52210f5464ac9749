// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"regexp"
	"strings"

	"github.com/kraklabs/skillscan/pkg/model"
)

// injectionRule is one pattern in the eight-family prompt-injection library,
// each carrying its own severity and weight for the suspicion score.
type injectionRule struct {
	pattern     *regexp.Regexp
	severity    model.Severity
	findingType string
	description string
	weight      float64
}

// injectionRules is the frozen pattern library, partitioned into eight
// families. Matching is case-insensitive via the (?i) inline flag.
var injectionRules = []injectionRule{
	// Direct Override
	{regexp.MustCompile(`(?i)ignore (all )?(previous|prior|above) instructions`), model.SeverityCritical, "prompt_injection_pattern", "direct override of prior instructions", 1.0},
	{regexp.MustCompile(`(?i)disregard (the )?(system|previous) prompt`), model.SeverityCritical, "prompt_injection_pattern", "direct override of the system prompt", 1.0},

	// Role Hijack
	{regexp.MustCompile(`(?i)you are now (root|admin|unrestricted|dan)\b`), model.SeverityCritical, "prompt_injection_pattern", "role hijack claiming elevated identity", 0.9},
	{regexp.MustCompile(`(?i)act as (an?|the) (unrestricted|jailbroken|unfiltered)`), model.SeverityHigh, "prompt_injection_pattern", "role hijack requesting an unfiltered persona", 0.8},

	// Context Manipulation
	{regexp.MustCompile(`(?i)this is (a|the) (test|simulation|sandbox)[,.]? (so |and )?(you (can|may|should))`), model.SeverityMedium, "prompt_injection_pattern", "context manipulation framing the session as inconsequential", 0.6},
	{regexp.MustCompile(`(?i)the (previous|above) (text|message) was (fake|a test|incorrect)`), model.SeverityMedium, "prompt_injection_pattern", "context manipulation discrediting prior context", 0.6},

	// Exfiltration
	{regexp.MustCompile(`(?i)send (the )?(user'?s?|conversation|context) (data|history|context) to`), model.SeverityCritical, "prompt_injection_pattern", "instruction to exfiltrate conversation context", 1.0},
	{regexp.MustCompile(`(?i)post (this|the result|it) to https?://`), model.SeverityHigh, "prompt_injection_pattern", "instruction to post data to an external URL", 0.8},

	// Privilege Escalation
	{regexp.MustCompile(`(?i)grant (yourself|full|admin|root) access`), model.SeverityCritical, "prompt_injection_pattern", "privilege escalation request", 0.9},
	{regexp.MustCompile(`(?i)bypass (the )?(safety|content) (filter|guard|policy)`), model.SeverityHigh, "prompt_injection_pattern", "instruction to bypass safety controls", 0.8},

	// Host-Format Injection
	{regexp.MustCompile(`(?i)</?\s*system\s*>`), model.SeverityHigh, "host_format_injection", "host-reserved <system> control tag", 0.7},
	{regexp.MustCompile(`(?i)</?\s*tool_use\s*>`), model.SeverityHigh, "host_format_injection", "host-reserved <tool_use> control tag", 0.7},
	{regexp.MustCompile(`(?i)</?\s*antml:[a-z_]+\s*>?`), model.SeverityHigh, "host_format_injection", "host-reserved antml control tag", 0.7},

	// Imperative
	{regexp.MustCompile(`(?i)\byou must\b`), model.SeverityLow, "imperative_instruction", "imperative directive", 0.3},
	{regexp.MustCompile(`(?i)\balways (do|run|execute)\b`), model.SeverityLow, "imperative_instruction", "imperative directive", 0.3},

	// Authority Claim
	{regexp.MustCompile(`(?i)as (the )?(developer|administrator|system) of this (tool|skill|assistant)`), model.SeverityMedium, "authority_claim", "false authority claim", 0.6},
	{regexp.MustCompile(`(?i)this (instruction|message) (overrides|supersedes) all others`), model.SeverityCritical, "authority_claim", "claim of override authority", 0.9},
}

// hiddenCommentKeywords gate an HTML comment body as a hidden instruction.
var hiddenCommentKeywords = []string{
	"ignore", "forget", "override", "send", "post", "you are", "act as", "pretend", "role", "system",
}

var htmlCommentPattern = regexp.MustCompile(`(?s)<!--(.*?)-->`)
var markdownCommentPattern = regexp.MustCompile(`(?i)\[(?://|comment)\]:\s*#\s*\(([^)]*)\)`)
var base64InCommentPattern = regexp.MustCompile(`[A-Za-z0-9+/]{60,}={0,2}`)

// imperativeKeywords feed the density term of the suspicion score.
var imperativeKeywords = []string{"must", "always", "never", "immediately", "required", "mandatory"}

// RunInjection implements S3: prompt-injection pattern matching and hidden
// content detection over every Markdown file in the sandbox.
func RunInjection(_ context.Context, sb *Sandbox) model.StageResult {
	return timed(model.StageInjection, func() (model.StageStatus, []model.Finding, string) {
		var findings []model.Finding

		for _, rel := range sb.FilesWithExt(".md") {
			raw, err := sb.ReadFile(rel)
			if err != nil {
				continue
			}
			findings = append(findings, scanMarkdownFile(rel, string(raw))...)
		}

		return statusFromFindings(findings), findings, ""
	})
}

func scanMarkdownFile(rel, content string) []model.Finding {
	var findings []model.Finding
	var weights []float64

	for _, rule := range injectionRules {
		locs := rule.pattern.FindAllStringIndex(content, -1)
		for _, loc := range locs {
			findings = append(findings, model.Finding{
				Stage: model.StageInjection, Severity: rule.severity,
				Type: rule.findingType, Description: rule.description,
				Location: lineLocation(rel, content, loc[0]),
				Tool:     "stage3_injection",
				Evidence: truncateInjectionEvidence(content[loc[0]:loc[1]]),
			})
			weights = append(weights, rule.weight)
		}
	}

	findings = append(findings, scanHiddenContent(rel, content)...)

	if score, ok := suspicionScore(content, weights); ok {
		severity := model.SeverityMedium
		if score >= 0.9 {
			severity = model.SeverityHigh
		}
		findings = append(findings, model.Finding{
			Stage: model.StageInjection, Severity: severity,
			Type: "elevated_suspicion", Description: "combined pattern and imperative density exceeds threshold",
			Location: rel, Tool: "stage3_suspicion", Confidence: model.Ptr(score),
		})
	}

	return findings
}

func scanHiddenContent(rel, content string) []model.Finding {
	var findings []model.Finding

	for _, m := range htmlCommentPattern.FindAllStringSubmatchIndex(content, -1) {
		body := content[m[2]:m[3]]
		lower := strings.ToLower(body)
		for _, kw := range hiddenCommentKeywords {
			if strings.Contains(lower, kw) {
				findings = append(findings, model.Finding{
					Stage: model.StageInjection, Severity: model.SeverityHigh,
					Type: "hidden_instruction", Description: "HTML comment contains instruction-like keyword: " + kw,
					Location: lineLocation(rel, content, m[0]), Tool: "stage3_hidden",
					Evidence: truncateInjectionEvidence(strings.TrimSpace(body)),
				})
				break
			}
		}
		if base64InCommentPattern.MatchString(body) {
			findings = append(findings, model.Finding{
				Stage: model.StageInjection, Severity: model.SeverityHigh,
				Type: "base64_in_comment", Description: "HTML comment contains a long base64-looking body",
				Location: lineLocation(rel, content, m[0]), Tool: "stage3_hidden",
			})
		}
	}

	for _, m := range markdownCommentPattern.FindAllStringIndex(content, -1) {
		findings = append(findings, model.Finding{
			Stage: model.StageInjection, Severity: model.SeverityMedium,
			Type: "hidden_markdown_comment", Description: "reference-style markdown comment hides content from rendered output",
			Location: lineLocation(rel, content, m[0]), Tool: "stage3_hidden",
			Evidence: truncateEvidence(content[m[0]:m[1]]),
		})
	}

	return findings
}

// truncateInjectionEvidence caps injection-finding evidence at the ~80
// characters the prompt-injection detection contract specifies, tighter
// than the general-purpose truncateEvidence used by other stages.
func truncateInjectionEvidence(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// suspicionScore combines the mean per-match weight with imperative keyword
// density, 0.7/0.3, clamped to 1. Returns ok=false when the score doesn't
// exceed the 0.7 emission threshold.
func suspicionScore(content string, weights []float64) (float64, bool) {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0, false
	}

	var meanWeight float64
	if len(weights) > 0 {
		var sum float64
		for _, w := range weights {
			sum += w
		}
		meanWeight = sum / float64(len(weights))
	}

	var imperativeCount int
	lower := strings.ToLower(content)
	for _, kw := range imperativeKeywords {
		imperativeCount += strings.Count(lower, kw)
	}
	density := float64(imperativeCount) / float64(len(words))

	score := 0.7*meanWeight + 0.3*density
	if score > 1 {
		score = 1
	}
	return score, score > 0.7
}
