// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/agnivade/levenshtein"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

// dependency is one declared package at a given version/range spec.
type dependency struct {
	Name      string
	Spec      string // the raw version specifier, "" when unpinned
	Ecosystem string // "pypi" or "npm"
}

var requirementsLinePattern = regexp.MustCompile(`^([A-Za-z0-9._-]+)\s*([<>=!~]+\s*[A-Za-z0-9.*_-]+)?\s*$`)
var caretRangePattern = regexp.MustCompile(`^\^(\d+)\.(\d+)$`)
var exactPinPattern = regexp.MustCompile(`^==\s*(\d+\.\d+\.\d+)$`)

var dynamicInstallPattern = regexp.MustCompile(`(?i)(subprocess\.[a-z_]+|os\.system|exec)\s*\([^)]*\b(pip install|npm install|pip\.main)\b`)

// RunSupplyChain implements S5: manifest parsing, per-dependency checks,
// typosquat detection, known-vulnerability lookups, and dynamic-install
// detection.
func RunSupplyChain(ctx context.Context, sb *Sandbox) model.StageResult {
	return timed(model.StageSupplyChain, func() (model.StageStatus, []model.Finding, string) {
		var findings []model.Finding
		var deps []dependency

		for _, rel := range sb.FileList {
			base := filepath.Base(rel)
			raw, err := sb.ReadFile(rel)
			if err != nil {
				continue
			}
			switch base {
			case "requirements.txt":
				deps = append(deps, parseRequirementsTxt(raw)...)
			case "package.json":
				deps = append(deps, parsePackageJSON(raw)...)
			case "pyproject.toml":
				deps = append(deps, parsePyprojectToml(raw)...)
			}
		}

		for _, dep := range deps {
			findings = append(findings, checkDependency(dep)...)
		}

		findings = append(findings, lookupKnownVulnerabilities(ctx, deps)...)

		for _, rel := range sb.FileList {
			raw, err := sb.ReadFile(rel)
			if err != nil {
				continue
			}
			findings = append(findings, scanDynamicInstall(rel, string(raw))...)
		}

		return statusFromFindings(findings), findings, ""
	})
}

func parseRequirementsTxt(raw []byte) []dependency {
	var deps []dependency
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		m := requirementsLinePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		deps = append(deps, dependency{Name: m[1], Spec: strings.TrimSpace(m[2]), Ecosystem: "pypi"})
	}
	return deps
}

func parsePackageJSON(raw []byte) []dependency {
	var deps []dependency
	for _, field := range []string{"dependencies", "devDependencies", "peerDependencies"} {
		gjson.GetBytes(raw, field).ForEach(func(key, value gjson.Result) bool {
			deps = append(deps, dependency{Name: key.String(), Spec: value.String(), Ecosystem: "npm"})
			return true
		})
	}
	return deps
}

func parsePyprojectToml(raw []byte) []dependency {
	var doc struct {
		Project struct {
			Dependencies map[string]string `toml:"dependencies"`
		} `toml:"project"`
	}
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil
	}
	var deps []dependency
	for name, spec := range doc.Project.Dependencies {
		deps = append(deps, dependency{Name: name, Spec: spec, Ecosystem: "pypi"})
	}
	return deps
}

func checkDependency(dep dependency) []model.Finding {
	var findings []model.Finding

	if isUnpinned(dep.Spec) {
		findings = append(findings, model.Finding{
			Stage: model.StageSupplyChain, Severity: model.SeverityMedium,
			Type: "unpinned_dependency", Description: "dependency has no pinned version: " + dep.Name,
			Location: dep.Name, Tool: "stage5_manifest",
		})
	} else if dep.Ecosystem == "npm" && caretRangePattern.MatchString(dep.Spec) {
		findings = append(findings, model.Finding{
			Stage: model.StageSupplyChain, Severity: model.SeverityLow,
			Type: "loose_version_range", Description: "caret range permits any minor/patch update: " + dep.Name + dep.Spec,
			Location: dep.Name, Tool: "stage5_manifest",
		})
	}

	if match, dist := closestPopularPackage(dep.Name, dep.Ecosystem); match != "" && isTyposquatDistance(dep.Name, match, dist) {
		findings = append(findings, model.Finding{
			Stage: model.StageSupplyChain, Severity: model.SeverityHigh,
			Type: "typosquatting", Description: "package name \"" + dep.Name + "\" closely resembles popular package \"" + match + "\"",
			Location: dep.Name, Tool: "stage5_typosquat",
		})
	}

	return findings
}

func isUnpinned(spec string) bool {
	spec = strings.TrimSpace(spec)
	return spec == "" || spec == "*" || strings.EqualFold(spec, "latest")
}

func isTyposquatDistance(name, match string, dist int) bool {
	if name == match {
		return false
	}
	if dist >= 1 && dist <= 2 {
		return true
	}
	if len(name) == len(match) && dist == 1 {
		return true
	}
	return false
}

// closestPopularPackage finds the nearest entry in the ecosystem's popular
// package set by Levenshtein distance.
func closestPopularPackage(name, ecosystem string) (string, int) {
	set := popularPackages[ecosystem]
	if set == nil {
		return "", 0
	}
	lower := strings.ToLower(name)
	if set[lower] {
		return "", 0 // exact match against the popular set yields nothing
	}
	best := ""
	bestDist := -1
	for candidate := range set {
		d := levenshtein.ComputeDistance(lower, candidate)
		if bestDist == -1 || d < bestDist {
			bestDist, best = d, candidate
		}
	}
	return best, bestDist
}

func scanDynamicInstall(rel, content string) []model.Finding {
	var findings []model.Finding
	for _, loc := range dynamicInstallPattern.FindAllStringIndex(content, -1) {
		findings = append(findings, model.Finding{
			Stage: model.StageSupplyChain, Severity: model.SeverityCritical,
			Type: "dynamic_install", Description: "package manager invoked programmatically at runtime",
			Location: lineLocation(rel, content, loc[0]), Tool: "stage5_dynamic_install",
			Evidence: truncateEvidence(content[loc[0]:loc[1]]),
		})
	}
	return findings
}

// vulnLookupResult mirrors the shape returned by the public vulnerability
// database's batch query endpoint.
type vulnLookupResult struct {
	Vulns []struct {
		ID       string `json:"id"`
		Severity string `json:"severity"`
		Summary  string `json:"summary"`
	} `json:"vulns"`
}

// lookupKnownVulnerabilities queries a public vulnerability database for
// every exactly-pinned Python dependency, concurrently, swallowing timeouts
// and errors per-dependency rather than failing the stage.
func lookupKnownVulnerabilities(ctx context.Context, deps []dependency) []model.Finding {
	var pinned []dependency
	for _, dep := range deps {
		if dep.Ecosystem == "pypi" && exactPinPattern.MatchString(strings.TrimSpace(dep.Spec)) {
			pinned = append(pinned, dep)
		}
	}
	if len(pinned) == 0 {
		return nil
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.Logger = nil

	lookupCtx, cancel := context.WithTimeout(ctx, config.VulnLookupTimeout)
	defer cancel()

	results := make([][]model.Finding, len(pinned))
	g, gctx := errgroup.WithContext(lookupCtx)
	for i, dep := range pinned {
		i, dep := i, dep
		g.Go(func() error {
			findings, err := queryVulnDB(gctx, client, dep)
			if err != nil {
				return nil // network failures are swallowed, not propagated
			}
			results[i] = findings
			return nil
		})
	}
	_ = g.Wait()

	var findings []model.Finding
	for _, r := range results {
		findings = append(findings, r...)
	}
	return findings
}

func queryVulnDB(ctx context.Context, client *retryablehttp.Client, dep dependency) ([]model.Finding, error) {
	version := strings.TrimPrefix(strings.TrimSpace(dep.Spec), "==")
	payload, err := json.Marshal(map[string]any{
		"package": map[string]string{"name": dep.Name, "ecosystem": "PyPI"},
		"version": version,
	})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, "https://api.osv.dev/v1/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed vulnLookupResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	const maxResults = 3
	var findings []model.Finding
	for i, v := range parsed.Vulns {
		if i >= maxResults {
			break
		}
		severity := model.SeverityHigh
		if strings.EqualFold(v.Severity, "HIGH") {
			severity = model.SeverityCritical
		}
		findings = append(findings, model.Finding{
			Stage: model.StageSupplyChain, Severity: severity,
			Type: "known_vulnerability", Description: v.ID + ": " + v.Summary,
			Location: dep.Name + "@" + version, Tool: "stage5_vulndb",
		})
	}
	return findings, nil
}
