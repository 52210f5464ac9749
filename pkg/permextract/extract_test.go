// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package permextract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFilesystemReadOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"),
		[]byte("open('./data.json')\njson.load(open('./data.json'))\n"), 0o644))

	perms, err := Extract(dir, []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"./data.json"}, perms.FilesystemRead)
	assert.Empty(t, perms.FilesystemWrite)
	assert.False(t, perms.Subprocess)
}

func TestExtractFilesystemWriteAndSubprocess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"),
		[]byte("open('out.log', 'w')\nimport subprocess\nsubprocess.run(['ls'])\n"), 0o644))

	perms, err := Extract(dir, []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"out.log"}, perms.FilesystemWrite)
	assert.True(t, perms.Subprocess)
}

func TestExtractNetworkDomainsAndEnvVars(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"),
		[]byte("import requests\nrequests.get('https://api.example.com/v1')\n"+
			"token = os.getenv('API_TOKEN')\n"), 0o644))

	perms, err := Extract(dir, []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"api.example.com"}, perms.NetworkOutbound)
	assert.Equal(t, []string{"API_TOKEN"}, perms.Environment)
}

func TestDropWildcardIfSpecificPresent(t *testing.T) {
	assert.Equal(t, []string{"api.example.com"}, dropWildcardIfSpecificPresent([]string{"*", "api.example.com"}))
	assert.Equal(t, []string{"*"}, dropWildcardIfSpecificPresent([]string{"*"}))
}

func TestExtractIsDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"),
		[]byte("open('b.txt')\nopen('a.txt')\n"), 0o644))

	first, err := Extract(dir, []string{"main.py"})
	require.NoError(t, err)
	second, err := Extract(dir, []string{"main.py"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
