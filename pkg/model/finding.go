// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package model defines the immutable record types shared across every
// scan stage: Finding, StageResult, IngestResult, and the request/response
// envelopes that cross the HTTP boundary.
//
// Values in this package are treated as read-only once constructed. The
// deduplicator is the only component permitted to derive a new Finding from
// an existing one; it never mutates its input.
package model

import "fmt"

// Severity is a total-ordered classification of a Finding's impact.
type Severity string

// Severity levels, ordered critical (most severe) to low (least severe).
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the total-order rank used for sorting (0 = most severe).
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// StageTag identifies the producing stage of a Finding or StageResult.
type StageTag string

// Stage tags, in pipeline order.
const (
	StageIngest       StageTag = "stage0"
	StageStructure    StageTag = "stage1"
	StageStaticCode   StageTag = "stage2"
	StageInjection    StageTag = "stage3"
	StageSecrets      StageTag = "stage4"
	StageSupplyChain  StageTag = "stage5"
	StageOrchestrator StageTag = "orchestrator"
)

// DefaultConfidence is assigned by the deduplicator to a Finding whose
// Confidence field is unset (nil).
const DefaultConfidence = 0.8

// Finding is a single observation emitted by exactly one stage.
//
// Findings are value-typed: once emitted they are never mutated, except by
// the Deduplicator, which always produces a new Finding rather than editing
// one in place.
type Finding struct {
	Stage       StageTag `json:"stage"`
	Severity    Severity `json:"severity"`
	Type        string   `json:"type"`
	Description string   `json:"description"`

	// Location is optional: "path" or "path:line" (1-based line numbers).
	Location string `json:"location,omitempty"`

	// Confidence is a real in [0,1]. Nil means "unset"; the deduplicator
	// substitutes DefaultConfidence when it encounters a nil value.
	Confidence *float64 `json:"confidence,omitempty"`

	// Tool names the producing rule or library. Deduplication may
	// concatenate several tool names with " + ".
	Tool string `json:"tool,omitempty"`

	// Evidence is an optional snippet, truncated to a few hundred
	// characters at most.
	Evidence string `json:"evidence,omitempty"`

	// Corroborated and CorroborationCount are set by the deduplicator
	// when two or more tools independently reported the same issue.
	Corroborated       bool `json:"corroborated,omitempty"`
	CorroborationCount int  `json:"corroboration_count,omitempty"`
}

// ConfidenceOrDefault returns f.Confidence, or DefaultConfidence if unset.
func (f Finding) ConfidenceOrDefault() float64 {
	if f.Confidence == nil {
		return DefaultConfidence
	}
	return *f.Confidence
}

// Ptr is a small helper for constructing a *float64 confidence literal,
// e.g. model.Finding{Confidence: model.Ptr(0.9)}.
func Ptr(v float64) *float64 {
	return &v
}

// StageStatus is the outcome of running one stage.
type StageStatus string

// Stage statuses.
const (
	StatusPassed  StageStatus = "passed"
	StatusFailed  StageStatus = "failed"
	StatusErrored StageStatus = "errored"
	StatusSkipped StageStatus = "skipped"
)

// StageResult is the outcome of one stage's run.
type StageResult struct {
	Stage      StageTag    `json:"stage"`
	Status     StageStatus `json:"status"`
	Findings   []Finding   `json:"findings"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// HasCritical reports whether r contains at least one critical finding.
func (r StageResult) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// IngestResult is the shared sandbox handed from S0 to later stages.
type IngestResult struct {
	// TempDir is the absolute path to the extraction root, or empty when
	// ingestion failed before a directory was created.
	TempDir string

	// FileHashes maps relative file path to hex SHA-256 of the file's bytes.
	FileHashes map[string]string

	// FileList is the deterministic (sorted) sequence of relative file
	// paths actually materialised on disk.
	FileList []string

	// TotalSize is the sum of extracted file sizes in bytes.
	TotalSize int64

	// StageResult is the S0 StageResult produced while building this sandbox.
	StageResult StageResult
}

// Failed reports whether ingestion itself failed (S0 status == failed).
func (r IngestResult) Failed() bool {
	return r.StageResult.Status == StatusFailed
}

// Verdict is the aggregate severity-ordered judgement over a scan's findings.
type Verdict string

// Verdict values, most to least severe.
const (
	VerdictFail           Verdict = "fail"
	VerdictFlagged        Verdict = "flagged"
	VerdictPassWithNotes  Verdict = "pass_with_notes"
	VerdictPass           Verdict = "pass"
)

// Permissions is the declared capability set for a skill package.
type Permissions struct {
	NetworkOutbound []string `json:"network_outbound,omitempty"`
	FilesystemRead  []string `json:"filesystem_read,omitempty"`
	FilesystemWrite []string `json:"filesystem_write,omitempty"`
	Subprocess      bool     `json:"subprocess,omitempty"`
	Environment     []string `json:"environment,omitempty"`
}

// Manifest is the declared metadata describing a skill package.
type Manifest struct {
	Name        string `json:"name,omitempty"`
	Entrypoint  string `json:"entrypoint,omitempty"`
	Description string `json:"description,omitempty"`
}

// ScanRequest is the input to the full pipeline (POST /api/analyze/scan).
type ScanRequest struct {
	TarballURL  string      `json:"tarball_url"`
	VersionID   string      `json:"version_id"`
	Manifest    Manifest    `json:"manifest"`
	Permissions Permissions `json:"permissions"`
}

// Validate performs basic input-shape validation on a ScanRequest, returning
// a human-readable error describing the first problem found.
func (r ScanRequest) Validate() error {
	if r.TarballURL == "" {
		return fmt.Errorf("tarball_url is required")
	}
	if r.VersionID == "" {
		return fmt.Errorf("version_id is required")
	}
	return nil
}

// ScanResponse is the output of the full pipeline.
type ScanResponse struct {
	VersionID    string        `json:"version_id"`
	Verdict      Verdict       `json:"verdict"`
	Findings     []Finding     `json:"findings"`
	StageResults []StageResult `json:"stage_results"`
	FileHashes   map[string]string `json:"file_hashes,omitempty"`
	DurationMS   int64         `json:"duration_ms"`
	ScanID       *string       `json:"scan_id,omitempty"`
}

// SeverityCounts tallies findings by severity.
type SeverityCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// CountSeverities tallies findings by severity.
func CountSeverities(findings []Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}
