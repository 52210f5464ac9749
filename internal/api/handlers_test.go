// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

type fakeScanner struct {
	resp model.ScanResponse
	err  error
}

func (f *fakeScanner) Run(ctx context.Context, req model.ScanRequest) (model.ScanResponse, error) {
	return f.resp, f.err
}

type fakeIngester struct {
	root     string
	fileList []string
	err      error
}

func (f *fakeIngester) IngestOnly(ctx context.Context, tarballURL string) (string, []string, func(), error) {
	if f.err != nil {
		return "", nil, func() {}, f.err
	}
	return f.root, f.fileList, func() {}, nil
}

type fakeRescanner struct {
	processed int
}

func (f *fakeRescanner) RescanOnce(ctx context.Context) int {
	return f.processed
}

func newTestServer() *Server {
	return &Server{
		Scanner:   &fakeScanner{resp: model.ScanResponse{VersionID: "v1", Verdict: model.VerdictPass}},
		Ingester:  &fakeIngester{root: ".", fileList: nil},
		Rescanner: &fakeRescanner{processed: 2},
		Config:    config.Default(),
	}
}

func TestHandleScanReturnsResponse(t *testing.T) {
	srv := newTestServer()
	router := NewRouter(srv)

	body, _ := json.Marshal(model.ScanRequest{TarballURL: "https://example.com/a.tgz", VersionID: "v1"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/scan", bytes.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, model.VerdictPass, resp.Verdict)
}

func TestHandleScanRejectsMissingFields(t *testing.T) {
	srv := newTestServer()
	router := NewRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/scan", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSecurityFindsDangerousPattern(t *testing.T) {
	srv := newTestServer()
	router := NewRouter(srv)

	body, _ := json.Marshal(map[string]string{"content": "eval(userInput)"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/security", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp securityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Findings)
}

func TestHandleRescanRequiresBearerTokenWhenConfigured(t *testing.T) {
	srv := newTestServer()
	srv.Config.CronSecret = "topsecret"
	router := NewRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/rescan", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/analyze/rescan", nil)
	req2.Header.Set("Authorization", "Bearer topsecret")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer()
	router := NewRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/api/analyze/scan/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
