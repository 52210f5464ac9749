// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/skillscan/pkg/model"
)

// securityKeywordVocabulary is the closed vocabulary a finding's type tokens
// may match through even when they don't intersect another finding's tokens
// directly.
var securityKeywordVocabulary = map[string]bool{
	"injection": true, "xss": true, "sqli": true, "rce": true, "execution": true,
	"deserialization": true, "credential": true, "secret": true, "password": true,
	"key": true, "token": true, "auth": true, "exfiltration": true, "network": true,
	"shell": true, "command": true, "eval": true, "exec": true, "obfuscation": true,
	"typosquat": true, "vulnerability": true, "cve": true,
}

// Dedupe merges duplicate findings across the flat, multi-stage finding
// list. Primaries are emitted in their original relative order; later
// findings judged duplicates of an earlier primary are folded into it.
func Dedupe(findings []model.Finding) []model.Finding {
	type indexed struct {
		f   model.Finding
		idx int
	}
	ordered := make([]indexed, len(findings))
	for i, f := range findings {
		ordered[i] = indexed{f, i}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := ordered[i].f.Severity.Rank(), ordered[j].f.Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return ordered[i].f.ConfidenceOrDefault() > ordered[j].f.ConfidenceOrDefault()
	})

	consumed := make([]bool, len(ordered))
	var merged []indexed

	for i := range ordered {
		if consumed[i] {
			continue
		}
		primary := ordered[i].f
		tools := map[string]bool{}
		if primary.Tool != "" {
			tools[primary.Tool] = true
		}
		duplicates := 0

		for j := i + 1; j < len(ordered); j++ {
			if consumed[j] {
				continue
			}
			candidate := ordered[j].f
			if !isDuplicate(primary, candidate) {
				continue
			}
			consumed[j] = true
			duplicates++
			if candidate.Tool != "" {
				tools[candidate.Tool] = true
			}
		}

		if duplicates > 0 {
			primary.Tool = joinSortedTools(tools)
			confidence := primary.ConfidenceOrDefault() + 0.1*float64(duplicates)
			if confidence > 1 {
				confidence = 1
			}
			primary.Confidence = model.Ptr(confidence)
			primary.CorroborationCount = len(tools)
			primary.Corroborated = len(tools) >= 2
		}

		merged = append(merged, indexed{primary, ordered[i].idx})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].idx < merged[j].idx })

	out := make([]model.Finding, len(merged))
	for i, m := range merged {
		out[i] = m.f
	}
	return out
}

func isDuplicate(a, b model.Finding) bool {
	if a.Location == "" || b.Location == "" {
		return false
	}
	pathA, lineA, okA := splitLocation(a.Location)
	pathB, lineB, okB := splitLocation(b.Location)
	if pathA != pathB {
		return false
	}
	if okA && okB {
		diff := lineA - lineB
		if diff < 0 {
			diff = -diff
		}
		if diff > 3 {
			return false
		}
	}
	return typeTokensRelated(a.Type, b.Type)
}

// splitLocation splits "path:line" into its path and parsed line number.
// ok is false when no line suffix is present or it isn't numeric.
func splitLocation(location string) (path string, line int, ok bool) {
	idx := strings.LastIndex(location, ":")
	if idx < 0 {
		return location, 0, false
	}
	path = location[:idx]
	n, err := strconv.Atoi(location[idx+1:])
	if err != nil {
		return location, 0, false
	}
	return path, n, true
}

func typeTokensRelated(a, b string) bool {
	tokensA := splitTypeTokens(a)
	tokensB := splitTypeTokens(b)

	for t := range tokensA {
		if tokensB[t] {
			return true
		}
	}
	for t := range tokensA {
		if securityKeywordVocabulary[t] {
			for u := range tokensB {
				if securityKeywordVocabulary[u] {
					return true
				}
			}
		}
	}
	return false
}

func splitTypeTokens(t string) map[string]bool {
	set := map[string]bool{}
	for _, part := range strings.FieldsFunc(t, func(r rune) bool {
		return r == '/' || r == '_' || r == '-'
	}) {
		set[strings.ToLower(part)] = true
	}
	return set
}

func joinSortedTools(tools map[string]bool) string {
	names := make([]string, 0, len(tools))
	for t := range tools {
		names = append(names, t)
	}
	sort.Strings(names)
	return strings.Join(names, " + ")
}
