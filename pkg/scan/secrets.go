// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/skillscan/pkg/model"
)

// binaryExtensions are skipped by the secrets scanner; they are not
// meaningfully scannable as text and commonly produce false positives from
// high-entropy byte sequences.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".mp3": true,
	".mp4": true, ".wasm": true, ".woff": true, ".woff2": true, ".ttf": true,
}

// secretSignature is one fixed-shape pattern in the signature-detector.
type secretSignature struct {
	pattern     *regexp.Regexp
	severity    model.Severity
	findingType string
	description string
}

var secretSignatures = []secretSignature{
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), model.SeverityHigh, "google_api_key", "Google API key"},
	{regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*["'][A-Za-z0-9_\-]{16,}["']`), model.SeverityHigh, "generic_api_key", "generic API key assignment"},
	{regexp.MustCompile(`(?i)(postgres|mysql|mongodb(\+srv)?)://[^:\s]+:[^@\s]+@[^\s"']+`), model.SeverityCritical, "database_credential_uri", "database connection URI with embedded credentials"},
	{regexp.MustCompile(`-----BEGIN (RSA|EC|OPENSSH|DSA|PGP) PRIVATE KEY-----`), model.SeverityCritical, "private_key", "PEM-encoded private key"},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`), model.SeverityHigh, "jwt_token", "JSON Web Token"},
	{regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Za-z0-9/]+`), model.SeverityHigh, "slack_webhook", "Slack incoming webhook URL"},
	{regexp.MustCompile(`https://discord(app)?\.com/api/webhooks/[0-9]+/[A-Za-z0-9_\-]+`), model.SeverityHigh, "discord_webhook", "Discord webhook URL"},
}

var highEntropyCandidate = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}|[0-9a-fA-F]{40,}`)

// keywordFamily mirrors an established secrets-scanner's plugin shape:
// a keyword that must appear near a high-entropy token of the given kind.
type keywordFamily struct {
	keyword     string
	findingType string
	severity    model.Severity
}

var entropyKeywordFamilies = []keywordFamily{
	{"aws_secret", "cloud_key", model.SeverityCritical},
	{"aws_access_key", "cloud_key", model.SeverityCritical},
	{"storage_account_key", "storage_key", model.SeverityHigh},
	{"basic ", "basic_auth_credential", model.SeverityHigh},
	{"authorization: bearer", "bearer_token", model.SeverityHigh},
	{"github_pat_", "vcs_token", model.SeverityCritical},
	{"ghp_", "vcs_token", model.SeverityCritical},
	{"glpat-", "vcs_token", model.SeverityCritical},
}

// RunSecrets implements S4: signature and entropy-based secret detection
// across all text files, plus the .env value policy.
func RunSecrets(_ context.Context, sb *Sandbox) model.StageResult {
	return timed(model.StageSecrets, func() (model.StageStatus, []model.Finding, string) {
		var findings []model.Finding

		for _, rel := range sb.FileList {
			ext := strings.ToLower(filepath.Ext(rel))
			if binaryExtensions[ext] {
				continue
			}
			raw, err := sb.ReadFile(rel)
			if err != nil {
				continue
			}
			content := string(raw)

			findings = append(findings, scanSignatures(rel, content)...)
			findings = append(findings, scanEntropyKeywords(rel, content)...)
			findings = append(findings, scanStandaloneEntropy(rel, content)...)

			base := filepath.Base(rel)
			if isEnvFile(base) {
				findings = append(findings, checkEnvFile(rel, content)...)
			}
		}

		deduped := dedupeByLocationAndType(findings)
		return statusFromFindings(deduped), deduped, ""
	})
}

func scanSignatures(rel, content string) []model.Finding {
	var findings []model.Finding
	for _, sig := range secretSignatures {
		for _, loc := range sig.pattern.FindAllStringIndex(content, -1) {
			match := content[loc[0]:loc[1]]
			findings = append(findings, model.Finding{
				Stage: model.StageSecrets, Severity: sig.severity,
				Type: sig.findingType, Description: sig.description,
				Location: lineLocation(rel, content, loc[0]), Tool: "stage4_signature",
				Evidence: maskSecret(match),
			})
		}
	}
	return findings
}

func scanEntropyKeywords(rel, content string) []model.Finding {
	lower := strings.ToLower(content)
	var findings []model.Finding
	for _, fam := range entropyKeywordFamilies {
		idx := strings.Index(lower, fam.keyword)
		if idx < 0 {
			continue
		}
		window := content[idx:min(len(content), idx+200)]
		if tok := highEntropyCandidate.FindString(window); tok != "" && shannonEntropy(tok) >= 3.5 {
			findings = append(findings, model.Finding{
				Stage: model.StageSecrets, Severity: fam.severity,
				Type: fam.findingType, Description: "high-entropy token near keyword \"" + strings.TrimSpace(fam.keyword) + "\"",
				Location: lineLocation(rel, content, idx), Tool: "stage4_entropy",
				Evidence: maskSecret(tok),
			})
		}
	}
	return findings
}

// scanStandaloneEntropy flags a bare high-entropy base64/hex token of 40+
// characters even with no nearby keyword, per the standalone signature in
// the secrets detection contract. A higher entropy floor than the
// keyword-adjacent check compensates for the lack of keyword corroboration.
func scanStandaloneEntropy(rel, content string) []model.Finding {
	var findings []model.Finding
	for _, loc := range highEntropyCandidate.FindAllStringIndex(content, -1) {
		tok := content[loc[0]:loc[1]]
		if shannonEntropy(tok) < 4.0 {
			continue
		}
		findings = append(findings, model.Finding{
			Stage: model.StageSecrets, Severity: model.SeverityMedium,
			Type: "high_entropy_string", Description: "standalone high-entropy string, possible embedded secret",
			Location: lineLocation(rel, content, loc[0]), Tool: "stage4_entropy_standalone",
			Evidence: maskSecret(tok),
		})
	}
	return findings
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	var entropy float64
	n := float64(len(s))
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func isEnvFile(base string) bool {
	if base == ".env" {
		return true
	}
	return strings.HasPrefix(base, ".env.") && !strings.HasSuffix(base, ".example")
}

var envValueLine = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=(.+)$`)

func checkEnvFile(rel, content string) []model.Finding {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := envValueLine.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if value == "" || strings.HasPrefix(value, "${") {
			continue
		}
		return []model.Finding{{
			Stage: model.StageSecrets, Severity: model.SeverityHigh,
			Type: "env_file_with_values", Description: ".env file contains non-empty literal values",
			Location: rel, Tool: "stage4_env_policy",
		}}
	}
	return nil
}

// maskSecret reveals only the first ten characters of matched evidence.
func maskSecret(s string) string {
	const keep = 10
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}

// dedupeByLocationAndType drops later findings sharing an identical
// (location, type) pair, preserving the first occurrence's order.
func dedupeByLocationAndType(findings []model.Finding) []model.Finding {
	seen := make(map[string]bool, len(findings))
	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		key := f.Location + "|" + f.Type
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
