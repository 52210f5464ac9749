// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

// Sandbox is the read-only view of the extracted skill package handed to
// S1 through S5. It wraps the IngestResult produced by S0 together with the
// original request (S2 needs the declared permissions; S5 needs nothing
// beyond the file set, but both travel together for uniformity).
type Sandbox struct {
	TempDir    string
	FileHashes map[string]string
	FileList   []string
	Request    model.ScanRequest
	Logger     *slog.Logger
}

// AbsPath resolves a relative file-list entry to its absolute path beneath
// TempDir. Callers must only pass paths drawn from FileList.
func (s *Sandbox) AbsPath(rel string) string {
	return filepath.Join(s.TempDir, rel)
}

// FilesWithExt returns the subset of FileList whose lowercased extension is
// in exts (each entry including the leading dot).
func (s *Sandbox) FilesWithExt(exts ...string) []string {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[e] = true
	}
	var out []string
	for _, rel := range s.FileList {
		if set[strings.ToLower(filepath.Ext(rel))] {
			out = append(out, rel)
		}
	}
	return out
}

// ReadFile reads a sandbox-relative file's full contents. It is a thin
// wrapper so stages never construct paths outside AbsPath.
func (s *Sandbox) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(s.AbsPath(rel))
}

// StageFunc runs one analysis stage over the sandbox and returns its result.
// Implementations must never panic across this boundary in production use;
// the orchestrator recovers panics defensively, but stages are expected to
// encode their own failures as StageResult data per the failure-as-data
// design.
type StageFunc func(ctx context.Context, sb *Sandbox) model.StageResult

// StageDescriptor is the uniform shape the orchestrator iterates over for
// S1..S5. Stages are not modelled as an interface hierarchy: each is simply
// a tag, a minimum time budget, and a runner function, exactly the "shared
// capability set" named in the design notes.
type StageDescriptor struct {
	Tag       model.StageTag
	MinBudget time.Duration
	Run       StageFunc
}

// DefaultStages returns the S1..S5 descriptors in pipeline order, wired to
// this package's concrete stage implementations.
func DefaultStages() []StageDescriptor {
	return []StageDescriptor{
		{Tag: model.StageStructure, MinBudget: config.StageMinBudgetShort, Run: RunStructure},
		{Tag: model.StageStaticCode, MinBudget: config.StageMinBudgetLong, Run: RunStaticAnalysis},
		{Tag: model.StageInjection, MinBudget: config.StageMinBudgetShort, Run: RunInjection},
		{Tag: model.StageSecrets, MinBudget: config.StageMinBudgetShort, Run: RunSecrets},
		{Tag: model.StageSupplyChain, MinBudget: config.StageMinBudgetLong, Run: RunSupplyChain},
	}
}

// timed runs fn and wraps its findings/status into a StageResult stamped
// with the elapsed duration and stage tag.
func timed(tag model.StageTag, fn func() (model.StageStatus, []model.Finding, string)) model.StageResult {
	start := time.Now()
	status, findings, errMsg := fn()
	elapsed := time.Since(start)
	recordStage(string(tag), string(status), elapsed.Seconds())
	recordFindings(findings)
	return model.StageResult{
		Stage:      tag,
		Status:     status,
		Findings:   findings,
		DurationMS: elapsed.Milliseconds(),
		Error:      errMsg,
	}
}

// statusFromFindings applies the generic failed/passed rule used by every
// stage except S0 (whose own failure semantics are ingest-specific):
// status is "failed" iff at least one critical finding fired.
func statusFromFindings(findings []model.Finding) model.StageStatus {
	for _, f := range findings {
		if f.Severity == model.SeverityCritical {
			return model.StatusFailed
		}
	}
	return model.StatusPassed
}

// sortedCopy returns a sorted copy of ss, leaving the input untouched.
func sortedCopy(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}
