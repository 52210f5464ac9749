// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package sarifexport

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/kraklabs/skillscan/pkg/model"
)

const (
	toolName       = "skillscan"
	informationURI = "https://github.com/kraklabs/skillscan"
)

// Write renders resp as a SARIF 2.1.0 log to w.
func Write(w io.Writer, resp model.ScanResponse) error {
	report, err := Build(resp)
	if err != nil {
		return err
	}
	return report.Write(w)
}

// Build assembles a *sarif.Report for resp without writing it anywhere,
// for callers that need to post-process the report before serialising it.
func Build(resp model.ScanResponse) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("sarifexport: new report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, informationURI)
	seenRules := make(map[string]bool)

	for _, f := range resp.Findings {
		ruleID := ruleIDFor(f)
		if !seenRules[ruleID] {
			run.AddRule(ruleID).
				WithDescription(f.Type).
				WithHelpURI(informationURI)
			seenRules[ruleID] = true
		}

		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(f.Description)).
			WithLevel(levelFor(f.Severity)).
			WithProperties(sarif.Properties{
				"confidence":          f.ConfidenceOrDefault(),
				"precision":           precisionFor(f.ConfidenceOrDefault()),
				"stage":               string(f.Stage),
				"tool":                f.Tool,
				"corroborated":        f.Corroborated,
				"corroboration_count": f.CorroborationCount,
			})

		loc := locationFor(f.Location)
		if loc != nil {
			result = result.WithLocations([]*sarif.Location{loc})
		}

		if flow := codeFlowFor(f, loc); flow != nil {
			result = result.WithCodeFlows([]*sarif.CodeFlow{flow})
		}

		run.AddResult(result)
	}

	report.AddRun(run)
	return report, nil
}

// ruleIDFor derives a stable rule identifier from a finding's stage and
// type, e.g. "stage2.dangerous_call".
func ruleIDFor(f model.Finding) string {
	return fmt.Sprintf("%s.%s", f.Stage, f.Type)
}

func levelFor(sev model.Severity) string {
	switch sev {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// precisionFor buckets a [0,1] confidence into SARIF's conventional
// precision vocabulary.
func precisionFor(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "very-high"
	case confidence >= 0.75:
		return "high"
	case confidence >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// locationFor parses a Finding.Location of the form "path" or "path:line"
// into a SARIF physical location. Returns nil for an empty location.
func locationFor(location string) *sarif.Location {
	if location == "" {
		return nil
	}

	path := location
	line := 1
	if idx := strings.LastIndex(location, ":"); idx > 0 {
		if n, err := strconv.Atoi(location[idx+1:]); err == nil {
			path = location[:idx]
			line = n
		}
	}

	return sarif.NewLocationWithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewSimpleArtifactLocation(path)).
			WithRegion(sarif.NewSimpleRegion(line, line)),
	)
}

// codeFlowFor wraps a finding's captured evidence snippet as a single-step
// SARIF code flow, the documented way of carrying "why this was flagged"
// alongside a result. Returns nil when there's no evidence to carry.
func codeFlowFor(f model.Finding, loc *sarif.Location) *sarif.CodeFlow {
	if f.Evidence == "" {
		return nil
	}

	step := sarif.NewThreadFlowLocation().
		WithMessage(sarif.NewTextMessage(f.Evidence))
	if loc != nil {
		step = step.WithLocation(loc)
	}

	threadFlow := sarif.NewThreadFlow().
		AddLocation(step)

	return sarif.NewCodeFlow().
		AddThreadFlow(threadFlow)
}
