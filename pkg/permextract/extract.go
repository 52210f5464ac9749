// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package permextract statically infers the capability set a skill package
// actually exercises, for comparison against what it declares.
package permextract

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/skillscan/pkg/model"
)

var (
	pyFileReadPattern  = regexp.MustCompile(`open\(\s*["']([^"']+)["']\s*(?:,\s*["'](r|rb)["'])?\s*\)`)
	pyFileWritePattern = regexp.MustCompile(`open\(\s*["']([^"']+)["']\s*,\s*["'](w|a|wb|ab|w\+|x)["']`)
	envVarPattern      = regexp.MustCompile(`os\.(?:environ(?:\.get)?(?:\[)?|getenv\()\s*["']([A-Za-z_][A-Za-z0-9_]*)["']`)
	networkURLPattern  = regexp.MustCompile(`(?:requests\.(?:get|post|put|delete)|urlopen|fetch)\(\s*["'](https?://[^"'\s]+)["']`)
	subprocessPattern  = regexp.MustCompile(`\b(subprocess\.(?:call|run|Popen|check_call|check_output)|os\.system|os\.popen)\s*\(`)
)

// permSet accumulates the distinct values discovered for one capability
// dimension, per the set-valued-accumulation design: duplicates collapse
// and the final sequence is sorted at the boundary.
type permSet map[string]bool

func (s permSet) add(v string) {
	if v != "" {
		s[v] = true
	}
}

func (s permSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Extract walks every source file beneath root and returns the inferred
// Permissions. fileList is expected to already be relative to root, matching
// the sandbox's deterministic sorted-order convention.
func Extract(root string, fileList []string) (model.Permissions, error) {
	reads := permSet{}
	writes := permSet{}
	envVars := permSet{}
	domains := permSet{}
	subprocess := false

	for _, rel := range fileList {
		ext := strings.ToLower(filepath.Ext(rel))
		if ext != ".py" && ext != ".js" && ext != ".ts" && ext != ".sh" && ext != ".bash" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			continue
		}
		content := string(raw)

		for _, m := range pyFileReadPattern.FindAllStringSubmatch(content, -1) {
			reads.add(m[1])
		}
		for _, m := range pyFileWritePattern.FindAllStringSubmatch(content, -1) {
			writes.add(m[1])
		}
		for _, m := range envVarPattern.FindAllStringSubmatch(content, -1) {
			envVars.add(m[1])
		}
		for _, m := range networkURLPattern.FindAllStringSubmatch(content, -1) {
			if host := hostOf(m[1]); host != "" {
				domains.add(host)
			}
		}
		if subprocessPattern.MatchString(content) {
			subprocess = true
		}
	}

	networkOutbound := domains.sorted()
	if len(networkOutbound) > 1 {
		networkOutbound = dropWildcardIfSpecificPresent(networkOutbound)
	}

	return model.Permissions{
		NetworkOutbound: networkOutbound,
		FilesystemRead:  reads.sorted(),
		FilesystemWrite: writes.sorted(),
		Subprocess:      subprocess,
		Environment:     envVars.sorted(),
	}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// dropWildcardIfSpecificPresent removes the "*" entry whenever at least one
// specific domain was also observed, per the component design.
func dropWildcardIfSpecificPresent(domains []string) []string {
	hasSpecific := false
	for _, d := range domains {
		if d != "*" {
			hasSpecific = true
			break
		}
	}
	if !hasSpecific {
		return domains
	}
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d != "*" {
			out = append(out, d)
		}
	}
	return out
}
