// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

// ScanResultRecord is the opaque-to-core persisted summary of one scan,
// handed to a scan.Recorder by the orchestrator's post-processing step.
type ScanResultRecord struct {
	ScanID      string
	VersionID   string
	TarballURL  string
	Verdict     Verdict
	Counts      SeverityCounts
	StagesRun   []StageTag
	DurationMS  int64
	FileHashes  map[string]string
}

// FindingRecord is one persisted scan_finding row.
type FindingRecord struct {
	Stage       StageTag
	Severity    Severity
	Type        string
	Description string
	Location    string
	Confidence  float64
	Tool        string
	Evidence    string
}

// ToFindingRecords flattens a finding slice into persisted rows, resolving
// unset confidence to DefaultConfidence.
func ToFindingRecords(findings []Finding) []FindingRecord {
	rows := make([]FindingRecord, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, FindingRecord{
			Stage:       f.Stage,
			Severity:    f.Severity,
			Type:        f.Type,
			Description: f.Description,
			Location:    f.Location,
			Confidence:  f.ConfidenceOrDefault(),
			Tool:        f.Tool,
			Evidence:    f.Evidence,
		})
	}
	return rows
}
