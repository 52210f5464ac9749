// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/skillscan/pkg/model"
)

// metricsScan holds Prometheus metrics for the scan subsystem.
type metricsScan struct {
	once sync.Once

	stagesRun      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	findingsByType *prometheus.CounterVec
	verdicts       *prometheus.CounterVec
	scansSkipped   prometheus.Counter
	scanDuration   prometheus.Histogram
}

var scanMetrics metricsScan

func (m *metricsScan) init() {
	m.once.Do(func() {
		m.stagesRun = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillscan_stage_runs_total",
			Help: "Stage executions by stage tag and resulting status.",
		}, []string{"stage", "status"})

		buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40}
		m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillscan_stage_duration_seconds",
			Help:    "Wall-clock duration of a single stage run.",
			Buckets: buckets,
		}, []string{"stage"})

		m.findingsByType = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillscan_findings_total",
			Help: "Findings emitted, by severity.",
		}, []string{"severity"})

		m.verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillscan_verdicts_total",
			Help: "Scans completed, by verdict.",
		}, []string{"verdict"})

		m.scansSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillscan_stages_skipped_total",
			Help: "Stages skipped due to budget exhaustion.",
		})

		m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillscan_scan_duration_seconds",
			Help:    "Total wall-clock duration of a scan.",
			Buckets: buckets,
		})

		prometheus.MustRegister(
			m.stagesRun, m.stageDuration, m.findingsByType,
			m.verdicts, m.scansSkipped, m.scanDuration,
		)
	})
}

func recordStage(stage, status string, seconds float64) {
	scanMetrics.init()
	scanMetrics.stagesRun.WithLabelValues(stage, status).Inc()
	scanMetrics.stageDuration.WithLabelValues(stage).Observe(seconds)
	if status == "skipped" {
		scanMetrics.scansSkipped.Inc()
	}
}

func recordFindings(findings []model.Finding) {
	scanMetrics.init()
	for _, f := range findings {
		scanMetrics.findingsByType.WithLabelValues(string(f.Severity)).Inc()
	}
}

func recordVerdict(v model.Verdict, totalSeconds float64) {
	scanMetrics.init()
	scanMetrics.verdicts.WithLabelValues(string(v)).Inc()
	scanMetrics.scanDuration.Observe(totalSeconds)
}
