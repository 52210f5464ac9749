// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

func writeSandboxFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestRunStructureMissingSkillMD(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "main.py", "print(1)\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"main.py"}}

	result := RunStructure(context.Background(), sb)
	var found bool
	for _, f := range result.Findings {
		if f.Type == "missing_skill_md" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunStructureBidiOverride(t *testing.T) {
	dir := t.TempDir()
	content := "safe‮text"
	writeSandboxFile(t, dir, "SKILL.md", content)
	sb := &Sandbox{TempDir: dir, FileList: []string{"SKILL.md"}}

	result := RunStructure(context.Background(), sb)
	require.Equal(t, model.StatusFailed, result.Status)
	assertHasType(t, result.Findings, "bidi_override")
}

func TestRunStructureZeroWidth(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "SKILL.md", "safe​text")
	sb := &Sandbox{TempDir: dir, FileList: []string{"SKILL.md"}}

	result := RunStructure(context.Background(), sb)
	assertHasType(t, result.Findings, "zero_width_char")
}

func TestRunStructureHiddenDotfile(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "SKILL.md", "ok")
	writeSandboxFile(t, dir, ".mysterious", "hidden")
	sb := &Sandbox{TempDir: dir, FileList: []string{"SKILL.md", ".mysterious"}}

	result := RunStructure(context.Background(), sb)
	assertHasType(t, result.Findings, "hidden_dotfile")
}

func TestRunStructureAllowedDotfileNotFlagged(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "SKILL.md", "ok")
	writeSandboxFile(t, dir, ".gitignore", "node_modules/")
	sb := &Sandbox{TempDir: dir, FileList: []string{"SKILL.md", ".gitignore"}}

	result := RunStructure(context.Background(), sb)
	for _, f := range result.Findings {
		assert.NotEqual(t, ".gitignore", f.Location)
	}
}

func assertHasType(t *testing.T, findings []model.Finding, typ string) {
	t.Helper()
	for _, f := range findings {
		if f.Type == typ {
			return
		}
	}
	t.Fatalf("expected a finding of type %q, got %+v", typ, findings)
}
