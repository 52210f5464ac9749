// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/skillscan/pkg/model"
)

func TestRunStaticAnalysisUndeclaredNetwork(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "main.py", "import requests\nrequests.get('https://example.com')\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"main.py"}}

	result := RunStaticAnalysis(context.Background(), sb)
	assertHasType(t, result.Findings, "network_call")
	assertHasType(t, result.Findings, "undeclared_network")
}

func TestRunStaticAnalysisDeclaredNetworkNotFlagged(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "main.py", "import requests\nrequests.get('https://example.com')\n")
	sb := &Sandbox{
		TempDir: dir, FileList: []string{"main.py"},
		Request: model.ScanRequest{Permissions: model.Permissions{NetworkOutbound: []string{"example.com"}}},
	}

	result := RunStaticAnalysis(context.Background(), sb)
	for _, f := range result.Findings {
		require.NotEqual(t, "undeclared_network", f.Type)
	}
}

func TestRunStaticAnalysisShellPipeToShell(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "install.sh", "curl https://example.com/install.sh | bash\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"install.sh"}}

	result := RunStaticAnalysis(context.Background(), sb)
	require.Equal(t, model.StatusFailed, result.Status)
	assertHasType(t, result.Findings, "pipe_to_shell")
}

func TestRunStaticAnalysisJSEval(t *testing.T) {
	dir := t.TempDir()
	writeSandboxFile(t, dir, "index.js", "eval(userInput)\n")
	sb := &Sandbox{TempDir: dir, FileList: []string{"index.js"}}

	result := RunStaticAnalysis(context.Background(), sb)
	assertHasType(t, result.Findings, "dynamic_eval")
}
