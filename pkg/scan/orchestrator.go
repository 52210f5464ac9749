// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

// Recorder persists a completed scan. The orchestrator works against this
// narrow interface rather than a concrete storage backend so the pipeline
// can run (and be tested) with no database configured at all.
type Recorder interface {
	RecordScan(ctx context.Context, result model.ScanResultRecord, findings []model.FindingRecord) error
}

// Orchestrator sequences S0 through S5, enforces the overall scan budget,
// and guarantees sandbox cleanup on every exit path.
type Orchestrator struct {
	Config   config.Config
	Stages   []StageDescriptor
	Recorder Recorder
	Logger   *slog.Logger
}

// NewOrchestrator builds an Orchestrator wired to the default S1..S5
// sequence. A nil Recorder is valid: the scan still runs, it just isn't
// persisted.
func NewOrchestrator(cfg config.Config, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Config: cfg, Stages: DefaultStages(), Recorder: recorder, Logger: logger}
}

// Run executes the full INIT -> S0 -> S1..S5 -> POST -> DONE pipeline
// against one scan request.
func (o *Orchestrator) Run(ctx context.Context, req model.ScanRequest) (model.ScanResponse, error) {
	if err := req.Validate(); err != nil {
		return model.ScanResponse{}, err
	}

	start := time.Now()
	budget := config.MaxScanDuration
	scanID := uuid.NewString()

	o.Logger.Info("scan.start", "scan_id", scanID, "version_id", req.VersionID)

	ingestResult := Ingest(ctx, req, o.Config, o.Logger)
	defer o.cleanup(ingestResult.TempDir)

	stageResults := []model.StageResult{ingestResult.StageResult}
	var findings []model.Finding
	findings = append(findings, ingestResult.StageResult.Findings...)

	if ingestResult.Failed() {
		return o.finish(ctx, req, scanID, start, stageResults, findings, nil)
	}

	sb := &Sandbox{
		TempDir:    ingestResult.TempDir,
		FileHashes: ingestResult.FileHashes,
		FileList:   ingestResult.FileList,
		Request:    req,
		Logger:     o.Logger,
	}

	for _, stage := range o.Stages {
		elapsed := time.Since(start)
		remaining := budget - elapsed
		if remaining < stage.MinBudget {
			stageResults = append(stageResults, model.StageResult{Stage: stage.Tag, Status: model.StatusSkipped})
			recordStage(string(stage.Tag), string(model.StatusSkipped), 0)
			o.Logger.Warn("scan.stage.skipped", "scan_id", scanID, "stage", stage.Tag)
			continue
		}

		result := o.runStageSafely(ctx, stage, sb)
		stageResults = append(stageResults, result)
		findings = append(findings, result.Findings...)
	}

	return o.finish(ctx, req, scanID, start, stageResults, findings, ingestResult.FileHashes)
}

// runStageSafely invokes a stage's runner, converting a panic into an
// "errored" StageResult so one stage's defect never aborts the sequence.
func (o *Orchestrator) runStageSafely(ctx context.Context, stage StageDescriptor, sb *Sandbox) (result model.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("scan.stage.errored", "stage", stage.Tag, "panic", r)
			result = model.StageResult{Stage: stage.Tag, Status: model.StatusErrored, Error: fmt.Sprintf("%v", r)}
		}
	}()
	o.Logger.Info("scan.stage.start", "stage", stage.Tag)
	result = stage.Run(ctx, sb)
	o.Logger.Info("scan.stage.complete", "stage", stage.Tag, "status", result.Status)
	return result
}

func (o *Orchestrator) finish(ctx context.Context, req model.ScanRequest, scanID string, start time.Time, stageResults []model.StageResult, rawFindings []model.Finding, fileHashes map[string]string) (model.ScanResponse, error) {
	deduped := Dedupe(rawFindings)
	verdict := ComputeVerdict(rawFindings)
	duration := time.Since(start)

	recordVerdict(verdict, duration.Seconds())

	resp := model.ScanResponse{
		VersionID:    req.VersionID,
		Verdict:      verdict,
		Findings:     deduped,
		StageResults: stageResults,
		FileHashes:   fileHashes,
		DurationMS:   duration.Milliseconds(),
		ScanID:       &scanID,
	}

	if o.Recorder != nil {
		stagesRun := make([]model.StageTag, 0, len(stageResults))
		for _, sr := range stageResults {
			stagesRun = append(stagesRun, sr.Stage)
		}
		record := model.ScanResultRecord{
			ScanID:     scanID,
			VersionID:  req.VersionID,
			TarballURL: req.TarballURL,
			Verdict:    verdict,
			Counts:     model.CountSeverities(deduped),
			StagesRun:  stagesRun,
			DurationMS: duration.Milliseconds(),
			FileHashes: fileHashes,
		}
		if err := o.Recorder.RecordScan(ctx, record, model.ToFindingRecords(deduped)); err != nil {
			o.Logger.Error("scan.persist.failed", "scan_id", scanID, "error", err)
			resp.ScanID = nil
		}
	}

	o.Logger.Info("scan.complete", "scan_id", scanID, "verdict", verdict, "duration_ms", resp.DurationMS)
	return resp, nil
}

func (o *Orchestrator) cleanup(tempDir string) {
	if tempDir == "" {
		return
	}
	if err := os.RemoveAll(tempDir); err != nil {
		o.Logger.Warn("scan.cleanup.failed", "temp_dir", tempDir, "error", err)
	}
}
