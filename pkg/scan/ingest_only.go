// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kraklabs/skillscan/internal/config"
	"github.com/kraklabs/skillscan/pkg/model"
)

// IngestOnly runs S0 alone and hands back the extracted sandbox, for
// callers (POST /api/analyze/permissions) that need the file tree without
// running the rest of the pipeline. The returned cleanup always removes
// the sandbox directory; callers must invoke it exactly once.
func IngestOnly(ctx context.Context, cfg config.Config, tarballURL string, logger *slog.Logger) (root string, fileList []string, cleanup func(), err error) {
	req := model.ScanRequest{TarballURL: tarballURL, VersionID: "ingest-only"}
	result := Ingest(ctx, req, cfg, logger)

	cleanup = func() {
		if result.TempDir != "" {
			_ = os.RemoveAll(result.TempDir)
		}
	}

	if result.Failed() {
		cleanup()
		reason := "unknown ingest failure"
		if len(result.StageResult.Findings) > 0 {
			reason = result.StageResult.Findings[0].Description
		}
		return "", nil, func() {}, fmt.Errorf("ingest failed: %s", reason)
	}

	return result.TempDir, result.FileList, cleanup, nil
}
