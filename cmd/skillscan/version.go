// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"

	"github.com/kraklabs/skillscan/internal/errors"
	"github.com/kraklabs/skillscan/internal/output"
)

// versionInfo is the JSON shape printed by `skillscan version --json`.
type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// runVersion executes the 'version' CLI command.
func runVersion(_ []string, globals GlobalFlags) {
	info := versionInfo{Version: version, Commit: commit, Date: date}

	if globals.JSON {
		if err := output.JSON(info); err != nil {
			errors.FatalError(err, globals.JSON)
		}
		return
	}

	fmt.Printf("skillscan version %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built: %s\n", info.Date)
}
