// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

func TestRunSupplyChainUnpinnedDependency(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "requirements.txt", "requests\nflask==2.0.1\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"requirements.txt"}}

	result := RunSupplyChain(context.Background(), sb)
	assertHasType(t, result.Findings, "unpinned_dependency")
}

func TestRunSupplyChainTyposquat(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "requirements.txt", "reqeusts==2.31.0\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"requirements.txt"}}

	result := RunSupplyChain(context.Background(), sb)
	assertHasType(t, result.Findings, "typosquatting")
}

func TestRunSupplyChainPackageJSONCaretRange(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "package.json", `{"dependencies": {"lodash": "^4.17"}}`)
	sb := &Sandbox{TempDir: dir, FileList: []string{"package.json"}}

	result := RunSupplyChain(context.Background(), sb)
	assertHasType(t, result.Findings, "loose_version_range")
}

func TestRunSupplyChainDynamicInstall(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "setup.py", "import subprocess\nsubprocess.run(['pip install requests'])\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"setup.py"}}

	result := RunSupplyChain(context.Background(), sb)
	require.Equal(t, model.StatusFailed, result.Status)
	assertHasType(t, result.Findings, "dynamic_install")
}

func TestParseRequirementsTxtSkipsComments(t *testing.T) {
	deps := parseRequirementsTxt([]byte("# comment\n-r other.txt\n\nnumpy==1.26.0\n"))
	require.Len(t, deps, 1)
	assert.Equal(t, "numpy", deps[0].Name)
}

func TestIsUnpinned(t *testing.T) {
	assert.True(t, isUnpinned(""))
	assert.True(t, isUnpinned("*"))
	assert.True(t, isUnpinned("latest"))
	assert.False(t, isUnpinned("==1.2.3"))
}
