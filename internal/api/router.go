// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

// Scanner runs the full scan pipeline. *scan.Orchestrator satisfies this.
type Scanner interface {
	Run(ctx context.Context, req model.ScanRequest) (model.ScanResponse, error)
}

// Ingester downloads and extracts a tarball into a temporary sandbox,
// returning the sandbox root, the file list, and a cleanup function that
// removes the sandbox. *scan.Orchestrator does not implement this directly;
// the CLI/server wiring adapts scan.IngestOnly to it.
type Ingester interface {
	IngestOnly(ctx context.Context, tarballURL string) (root string, fileList []string, cleanup func(), err error)
}

// Rescanner triggers an on-demand rescan batch.
type Rescanner interface {
	RescanOnce(ctx context.Context) int
}

// Server holds the dependencies the HTTP handlers are built against. Each
// field is a narrow interface rather than a concrete type, so the router
// can be exercised in tests against fakes without a real sandbox, network,
// or database.
type Server struct {
	Scanner   Scanner
	Ingester  Ingester
	Rescanner Rescanner
	Config    config.Config
	Logger    *slog.Logger
}

// NewRouter builds skillscan's HTTP surface over s.
func NewRouter(s *Server) chi.Router {
	r := chi.NewRouter()

	r.Post("/api/analyze/scan", s.handleScan)
	r.Post("/api/analyze/security", s.handleSecurity)
	r.Post("/api/analyze/permissions", s.handlePermissions)
	r.Post("/api/analyze/rescan", s.requireCronSecret(s.handleRescan))
	r.Get("/api/analyze/scan/health", s.handleHealth)

	return r
}

// requireCronSecret gates a handler behind a bearer token matching
// Config.CronSecret. When CronSecret is unset the endpoint is open, which
// suits local development; the CLI's own rescan command calls the
// scheduler in-process and never passes through this gate.
func (s *Server) requireCronSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Config.CronSecret == "" {
			next(w, r)
			return
		}
		token := extractBearerToken(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.Config.CronSecret)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	}
}

func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
