// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testing provides fixture builders shared by skillscan's package
// tests: gzipped-tar archives, hostile archive members, and a tiny
// httptest-backed tarball server.
package testing

import (
	"archive/tar"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// TarEntry is one member to write into a fixture archive.
type TarEntry struct {
	Name string
	Body string

	// Typeflag overrides tar.TypeReg when set (e.g. tar.TypeSymlink).
	Typeflag byte

	// Linkname is used for symlink/hardlink entries.
	Linkname string
}

// BuildTarball gzip-compresses a tar archive built from entries and returns
// its bytes.
//
// Example:
//
//	data := testing.BuildTarball(t, []testing.TarEntry{
//	    {Name: "SKILL.md", Body: "# hello"},
//	    {Name: "main.py", Body: "print('hi')"},
//	})
func BuildTarball(t *testing.T, entries []TarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		typeflag := e.Typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.Name,
			Typeflag: typeflag,
			Linkname: e.Linkname,
			Size:     int64(len(e.Body)),
			Mode:     0o644,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header for %s: %v", e.Name, err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write tar body for %s: %v", e.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}

	return buf.Bytes()
}

// ServeTarball starts an httptest.Server that serves data for every
// request and returns its URL. The server is closed automatically when the
// test finishes.
//
// Example:
//
//	data := testing.BuildTarball(t, entries)
//	url := testing.ServeTarball(t, data)
//	result := scan.Ingest(ctx, model.ScanRequest{TarballURL: url}, cfg, nil)
func ServeTarball(t *testing.T, data []byte) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}
