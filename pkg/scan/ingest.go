// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

// blockedExtensions are native-binary or bytecode extensions S0 refuses to
// materialise on disk, per the Extraction contract in the component design.
var blockedExtensions = map[string]bool{
	".so": true, ".dll": true, ".dylib": true, ".exe": true,
	".pyc": true, ".pyo": true, ".class": true, ".o": true, ".a": true,
}

// preflightEntry is the metadata-only view of one tar member, read without
// extracting any bytes.
type preflightEntry struct {
	name       string
	size       int64
	typeflag   byte
}

// Ingest runs S0: it downloads req.TarballURL, safety-checks the archive
// metadata-only, extracts it into a fresh sandbox directory, and hashes
// every materialised file. It never panics; every failure mode is encoded
// as a critical Finding and a failed StageResult.
func Ingest(ctx context.Context, req model.ScanRequest, cfg config.Config, logger *slog.Logger) model.IngestResult {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	fail := func(findings []model.Finding) model.IngestResult {
		recordStage(string(model.StageIngest), string(model.StatusFailed), time.Since(start).Seconds())
		recordFindings(findings)
		return model.IngestResult{
			StageResult: model.StageResult{
				Stage:      model.StageIngest,
				Status:     model.StatusFailed,
				Findings:   findings,
				DurationMS: time.Since(start).Milliseconds(),
			},
		}
	}

	// URL gate.
	parsed, err := url.Parse(req.TarballURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fail([]model.Finding{downloadFailedFinding("tarball_url must be http or https")})
	}
	if !hostAllowed(parsed.Hostname(), cfg.AllowedTarballHosts) {
		return fail([]model.Finding{downloadFailedFinding("tarball host is not allow-listed: " + parsed.Hostname())})
	}

	logger.Info("scan.stage.start", "stage", model.StageIngest, "url", req.TarballURL)

	body, err := download(ctx, req.TarballURL)
	if err != nil {
		logger.Warn("scan.ingest.download.error", "err", err)
		return fail([]model.Finding{downloadFailedFinding(err.Error())})
	}
	defer body.Close()

	raw, compressedSize, err := readAllBounded(body, config.MaxTarballSize)
	if err != nil {
		return fail([]model.Finding{downloadFailedFinding(err.Error())})
	}

	entries, uncompressedSize, findings := preflight(raw)
	if compressedSize > 0 && float64(uncompressedSize)/float64(compressedSize) > config.MaxCompressionRatio {
		findings = append(findings, zipBombFinding())
	}
	if hasCritical(findings) {
		return fail(findings)
	}

	tempDir, err := os.MkdirTemp("", "skillscan-*")
	if err != nil {
		return fail(append(findings, downloadFailedFinding("failed to create sandbox: "+err.Error())))
	}

	extractFindings := extract(raw, tempDir, entries)
	findings = append(findings, extractFindings...)

	if uncompressedSize > config.MaxExtractedSize {
		findings = append(findings, model.Finding{
			Stage: model.StageIngest, Severity: model.SeverityCritical,
			Type: "size_exceeded", Description: fmt.Sprintf(
				"extracted size %d bytes exceeds the %d byte limit", uncompressedSize, config.MaxExtractedSize),
		})
	}

	if hasCritical(findings) {
		_ = os.RemoveAll(tempDir)
		return fail(findings)
	}

	fileList, fileHashes, err := hashSandbox(tempDir)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return fail(append(findings, downloadFailedFinding("failed to hash sandbox: "+err.Error())))
	}

	status := model.StatusPassed
	if hasCritical(findings) {
		status = model.StatusFailed
	}

	result := model.StageResult{
		Stage:      model.StageIngest,
		Status:     status,
		Findings:   findings,
		DurationMS: time.Since(start).Milliseconds(),
	}
	recordStage(string(model.StageIngest), string(status), time.Since(start).Seconds())
	recordFindings(findings)

	var totalSize int64
	for _, rel := range fileList {
		if info, err := os.Stat(filepath.Join(tempDir, rel)); err == nil {
			totalSize += info.Size()
		}
	}

	logger.Info("scan.stage.complete", "stage", model.StageIngest, "status", status,
		"files", len(fileList), "total_size", totalSize)

	return model.IngestResult{
		TempDir:     tempDir,
		FileHashes:  fileHashes,
		FileList:    fileList,
		TotalSize:   totalSize,
		StageResult: result,
	}
}

func hasCritical(findings []model.Finding) bool {
	for _, f := range findings {
		if f.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

func downloadFailedFinding(reason string) model.Finding {
	return model.Finding{
		Stage: model.StageIngest, Severity: model.SeverityCritical,
		Type: "download_failed", Description: "failed to retrieve tarball: " + reason,
	}
}

func zipBombFinding() model.Finding {
	return model.Finding{
		Stage: model.StageIngest, Severity: model.SeverityCritical,
		Type: "zip_bomb", Description: "compression ratio exceeds the configured limit",
	}
}

// hostAllowed reports whether host equals or is a subdomain of one of
// allowed, with loopback hosts always permitted so fixtures served via
// httptest work without config changes.
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	for _, a := range allowed {
		a = strings.ToLower(a)
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// download performs a HEAD request to read Content-Length (rejecting
// oversized tarballs without a body fetch), then a GET, following
// redirects, bounded by a 30s timeout.
func download(ctx context.Context, tarballURL string) (io.ReadCloser, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	httpClient := client.StandardClient()
	httpClient.Timeout = config.DownloadTimeout

	headReq, err := http.NewRequestWithContext(ctx, http.MethodHead, tarballURL, nil)
	if err == nil {
		if resp, err := httpClient.Do(headReq); err == nil {
			defer resp.Body.Close()
			if resp.ContentLength > config.MaxTarballSize {
				return nil, fmt.Errorf("tarball declares %d bytes, exceeds limit", resp.ContentLength)
			}
		}
		// A failed or unsupported HEAD is not itself fatal; fall through to GET.
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(getReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > config.MaxTarballSize {
		resp.Body.Close()
		return nil, fmt.Errorf("tarball body declares %d bytes, exceeds limit", resp.ContentLength)
	}
	return resp.Body, nil
}

// readAllBounded reads r fully, refusing to buffer past limit+1 bytes.
func readAllBounded(r io.Reader, limit int64) ([]byte, int64, error) {
	limited := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, 0, err
	}
	if int64(len(data)) > limit {
		return nil, 0, fmt.Errorf("tarball body exceeds %d byte limit", limit)
	}
	return data, int64(len(data)), nil
}

// preflight decompresses and walks the tar stream metadata-only (headers
// only, bytes discarded), computing the sum of member sizes for the
// compression-ratio check and emitting findings for symlinks/hardlinks and
// path-traversal member names without writing anything to disk.
func preflight(raw []byte) ([]preflightEntry, int64, []model.Finding) {
	gz, err := gzip.NewReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, 0, []model.Finding{{
			Stage: model.StageIngest, Severity: model.SeverityCritical,
			Type: "archive_error", Description: "failed to open gzip stream: " + err.Error(),
		}}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var entries []preflightEntry
	var findings []model.Finding
	var totalSize int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			findings = append(findings, model.Finding{
				Stage: model.StageIngest, Severity: model.SeverityCritical,
				Type: "archive_error", Description: "malformed tar stream: " + err.Error(),
			})
			break
		}

		switch hdr.Typeflag {
		case tar.TypeSymlink, tar.TypeLink:
			findings = append(findings, model.Finding{
				Stage: model.StageIngest, Severity: model.SeverityHigh,
				Type: "archive_link", Description: "archive member is a link: " + hdr.Name,
				Location: hdr.Name,
			})
			continue
		}

		if strings.Contains(hdr.Name, "..") || strings.HasPrefix(hdr.Name, "/") {
			findings = append(findings, model.Finding{
				Stage: model.StageIngest, Severity: model.SeverityCritical,
				Type: "path_traversal", Description: "archive member escapes the sandbox: " + hdr.Name,
				Location: hdr.Name,
			})
			continue
		}

		if hdr.Typeflag == tar.TypeReg {
			totalSize += hdr.Size
		}
		entries = append(entries, preflightEntry{name: hdr.Name, size: hdr.Size, typeflag: hdr.Typeflag})
	}

	return entries, totalSize, findings
}

// extract re-walks the (already preflighted) tar stream and writes each
// regular-file member to disk beneath tempDir, re-verifying that the
// resolved destination is still a descendant of tempDir (defence in depth
// against any entry preflight didn't already exclude).
func extract(raw []byte, tempDir string, allowed []preflightEntry) []model.Finding {
	allowedNames := make(map[string]bool, len(allowed))
	for _, e := range allowed {
		if e.typeflag == tar.TypeReg {
			allowedNames[e.name] = true
		}
	}

	gz, err := gzip.NewReader(strings.NewReader(string(raw)))
	if err != nil {
		return []model.Finding{{
			Stage: model.StageIngest, Severity: model.SeverityCritical,
			Type: "archive_error", Description: "failed to re-open gzip stream: " + err.Error(),
		}}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var findings []model.Finding

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if !allowedNames[hdr.Name] {
			continue
		}

		ext := strings.ToLower(filepath.Ext(hdr.Name))
		if blockedExtensions[ext] {
			findings = append(findings, model.Finding{
				Stage: model.StageIngest, Severity: model.SeverityCritical,
				Type: "blocked_file_type", Description: "refusing to extract blocked file type: " + hdr.Name,
				Location: hdr.Name,
			})
			continue
		}

		dest := filepath.Join(tempDir, hdr.Name)
		resolved, err := filepath.Abs(dest)
		if err != nil || !isDescendant(tempDir, resolved) {
			findings = append(findings, model.Finding{
				Stage: model.StageIngest, Severity: model.SeverityCritical,
				Type: "path_escape", Description: "archive member resolves outside the sandbox: " + hdr.Name,
				Location: hdr.Name,
			})
			continue
		}

		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			continue
		}
		f, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			continue
		}
		written, copyErr := io.Copy(f, tr)
		f.Close()
		if copyErr != nil {
			continue
		}

		if written > config.MaxSingleFileSize {
			findings = append(findings, model.Finding{
				Stage: model.StageIngest, Severity: model.SeverityMedium,
				Type: "large_file", Description: fmt.Sprintf("file exceeds %d bytes", config.MaxSingleFileSize),
				Location: hdr.Name,
			})
		}
	}

	return findings
}

func isDescendant(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// hashSandbox walks tempDir, returning the sorted relative file list and a
// map of relative path to hex SHA-256, streaming each file in 8 KiB chunks.
func hashSandbox(tempDir string) ([]string, map[string]string, error) {
	var fileList []string
	hashes := make(map[string]string)

	err := filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(tempDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			// Unreadable files are omitted from hashes but still listed.
			fileList = append(fileList, rel)
			return nil
		}
		defer f.Close()

		h := sha256.New()
		buf := make([]byte, 8192)
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				h.Write(buf[:n])
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				fileList = append(fileList, rel)
				return nil
			}
		}
		hashes[rel] = hex.EncodeToString(h.Sum(nil))
		fileList = append(fileList, rel)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Strings(fileList)
	return fileList, hashes, nil
}
