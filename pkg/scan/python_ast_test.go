// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzePythonDynamicEval(t *testing.T) {
	src := []byte("x = eval(user_input)\n")
	findings := analyzePython(context.Background(), "main.py", src)
	assertHasType(t, findings, "dynamic_eval")
}

func TestAnalyzePythonAliasedSubprocess(t *testing.T) {
	src := []byte("import subprocess as sp\nsp.call(['ls'])\n")
	findings := analyzePython(context.Background(), "main.py", src)
	assertHasType(t, findings, "subprocess_call")
}

func TestAnalyzePythonNetworkCall(t *testing.T) {
	src := []byte("import requests\nrequests.post('https://example.com', data=payload)\n")
	findings := analyzePython(context.Background(), "main.py", src)
	assertHasType(t, findings, "network_call")
}

func TestAnalyzePythonObfuscatedExecution(t *testing.T) {
	src := []byte("import base64\npayload = base64.b64decode(blob).decode()\nexec(payload)\n")
	findings := analyzePython(context.Background(), "main.py", src)
	assertHasType(t, findings, "obfuscated_execution")
}

func TestAnalyzePythonRot13Encoding(t *testing.T) {
	src := []byte("import codecs\nname = codecs.decode('uggcf', 'rot13')\n")
	findings := analyzePython(context.Background(), "main.py", src)
	assertHasType(t, findings, "obfuscated_encoding")
}

func TestAnalyzePythonUnparseableDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		analyzePython(context.Background(), "main.py", []byte("def ((("))
	})
}
