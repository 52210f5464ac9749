// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import "github.com/kraklabs/skillscan/pkg/model"

// ComputeVerdict derives the overall Verdict from the full finding set.
// Severity counts must be computed over either the raw or the deduplicated
// list interchangeably -- deduplication only ever drops exact duplicates,
// never changes a count's threshold crossing in a way the rule table cares
// about at the boundaries this function checks.
func ComputeVerdict(findings []model.Finding) model.Verdict {
	counts := model.CountSeverities(findings)

	switch {
	case counts.Critical > 0:
		return model.VerdictFail
	case counts.High >= 4:
		return model.VerdictFail
	case counts.High >= 1 && counts.High <= 3:
		return model.VerdictFlagged
	case counts.Medium+counts.Low > 0:
		return model.VerdictPassWithNotes
	default:
		return model.VerdictPass
	}
}
