// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"encoding/json"
	"net/http"

	"github.com/kraklabs/skillscan/pkg/model"
	"github.com/kraklabs/skillscan/pkg/permextract"
	"github.com/kraklabs/skillscan/pkg/scan"
)

// handleScan implements POST /api/analyze/scan: the full S0..S5 pipeline
// against a tarball URL.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req model.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.Scanner.Run(r.Context(), req)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// securityRequest is the body accepted by POST /api/analyze/security.
type securityRequest struct {
	Content string `json:"content"`
}

// securityResponse is the body returned by POST /api/analyze/security.
type securityResponse struct {
	Findings []model.Finding `json:"findings"`
	Verdict  model.Verdict   `json:"verdict"`
}

// handleSecurity implements POST /api/analyze/security: a fast regex-only
// pass over inline content, skipping the tarball download and sandbox.
func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request) {
	var req securityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	findings := scan.QuickScan(req.Content)
	writeJSON(w, http.StatusOK, securityResponse{
		Findings: findings,
		Verdict:  scan.ComputeVerdict(findings),
	})
}

// permissionsRequest is the body accepted by POST /api/analyze/permissions.
type permissionsRequest struct {
	TarballURL string `json:"tarball_url"`
}

// handlePermissions implements POST /api/analyze/permissions: download and
// extract the tarball, then statically infer its exercised capabilities.
func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TarballURL == "" {
		writeJSONError(w, http.StatusBadRequest, "tarball_url is required")
		return
	}

	root, fileList, cleanup, err := s.Ingester.IngestOnly(r.Context(), req.TarballURL)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	perms, err := permextract.Extract(root, fileList)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

// rescanResponse is the body returned by POST /api/analyze/rescan.
type rescanResponse struct {
	Processed int `json:"processed"`
}

// handleRescan implements POST /api/analyze/rescan, gated by requireCronSecret.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	processed := s.Rescanner.RescanOnce(r.Context())
	writeJSON(w, http.StatusOK, rescanResponse{Processed: processed})
}

// handleHealth implements GET /api/analyze/scan/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
