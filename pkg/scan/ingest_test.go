// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"archive/tar"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/internal/config"
	skilltest "github.com/kraklabs/skillscan/internal/testing"
	"github.com/kraklabs/skillscan/pkg/model"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.AllowedTarballHosts = nil // loopback is always allowed
	return cfg
}

func TestIngestSafeSkill(t *testing.T) {
	data := skilltest.BuildTarball(t, []skilltest.TarEntry{
		{Name: "SKILL.md", Body: "# A safe skill\n"},
		{Name: "main.py", Body: "open('./data.json')\n"},
	})
	url := skilltest.ServeTarball(t, data)

	result := Ingest(context.Background(), model.ScanRequest{TarballURL: url}, testConfig(), nil)
	require.Equal(t, model.StatusPassed, result.StageResult.Status)
	assert.NotEmpty(t, result.TempDir)
	assert.Contains(t, result.FileList, "SKILL.md")
	assert.Contains(t, result.FileList, "main.py")
	assert.Len(t, result.FileHashes, 2)

	_, err := os.Stat(result.TempDir)
	assert.NoError(t, err)
	_ = os.RemoveAll(result.TempDir)
}

func TestIngestPathTraversal(t *testing.T) {
	data := skilltest.BuildTarball(t, []skilltest.TarEntry{
		{Name: "../../../etc/passwd", Body: "root:x:0:0\n"},
	})
	url := skilltest.ServeTarball(t, data)

	result := Ingest(context.Background(), model.ScanRequest{TarballURL: url}, testConfig(), nil)
	require.Equal(t, model.StatusFailed, result.StageResult.Status)

	var found bool
	for _, f := range result.StageResult.Findings {
		if f.Type == "path_traversal" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotContains(t, result.FileList, "etc/passwd")
}

func TestIngestZipBomb(t *testing.T) {
	// 10 MiB of a single repeated byte compresses far past the 100x ratio.
	big := make([]byte, 10<<20)
	data := skilltest.BuildTarball(t, []skilltest.TarEntry{{Name: "payload.bin", Body: string(big)}})
	url := skilltest.ServeTarball(t, data)

	result := Ingest(context.Background(), model.ScanRequest{TarballURL: url}, testConfig(), nil)
	require.Equal(t, model.StatusFailed, result.StageResult.Status)

	var found bool
	for _, f := range result.StageResult.Findings {
		if f.Type == "zip_bomb" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIngestSymlinkSkipped(t *testing.T) {
	data := skilltest.BuildTarball(t, []skilltest.TarEntry{
		{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"},
		{Name: "SKILL.md", Body: "# ok\n"},
	})
	url := skilltest.ServeTarball(t, data)

	result := Ingest(context.Background(), model.ScanRequest{TarballURL: url}, testConfig(), nil)
	require.Equal(t, model.StatusPassed, result.StageResult.Status)

	var found bool
	for _, f := range result.StageResult.Findings {
		if f.Type == "archive_link" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotContains(t, result.FileList, "link")
	_ = os.RemoveAll(result.TempDir)
}

func TestIngestRejectsDisallowedHost(t *testing.T) {
	result := Ingest(context.Background(), model.ScanRequest{
		TarballURL: "https://evil.example.com/pkg.tar.gz",
	}, config.Default(), nil)
	require.Equal(t, model.StatusFailed, result.StageResult.Status)
	assert.Equal(t, "download_failed", result.StageResult.Findings[0].Type)
}
