// internal/orchestrator/consistency.go
package orchestrator

import (
	"fmt"
	"sort"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/models"
)

// checkConsistency is the pre-terminal gate: the ranked list must be sorted
// with no duplicate candidates, and every retained candidate must carry
// either a generated brief or an explicit failure marker. A violation means
// the run lied somewhere and must go FAILED instead of terminal-success.
func checkConsistency(run *models.WorkflowRun, retained []models.ResonanceScore) error {
	if !sort.SliceIsSorted(run.Ranked, func(i, j int) bool {
		if run.Ranked[i].Total != run.Ranked[j].Total {
			return run.Ranked[i].Total > run.Ranked[j].Total
		}
		return run.Ranked[i].CandidateID < run.Ranked[j].CandidateID
	}) {
		return pipeerrors.NewConsistencyCheckFailedError("ranked list is not sorted")
	}

	seen := make(map[string]struct{}, len(run.Ranked))
	for _, score := range run.Ranked {
		if _, ok := seen[score.CandidateID]; ok {
			return pipeerrors.NewConsistencyCheckFailedError(
				fmt.Sprintf("candidate %s appears twice in ranked list", score.CandidateID))
		}
		seen[score.CandidateID] = struct{}{}
	}

	briefed := make(map[string]models.BriefResult, len(run.Briefs))
	for _, brief := range run.Briefs {
		briefed[brief.CandidateID] = brief
	}
	for _, score := range retained {
		result, ok := briefed[score.CandidateID]
		if !ok {
			return pipeerrors.NewConsistencyCheckFailedError(
				fmt.Sprintf("retained candidate %s has no briefing entry", score.CandidateID))
		}
		switch result.Status {
		case models.BriefStatusGenerated:
			if result.Brief == nil || result.Brief.Title == "" {
				return pipeerrors.NewConsistencyCheckFailedError(
					fmt.Sprintf("candidate %s is marked GENERATED with an empty brief", score.CandidateID))
			}
		case models.BriefStatusFailed:
			if result.Error == "" {
				return pipeerrors.NewConsistencyCheckFailedError(
					fmt.Sprintf("candidate %s is marked FAILED with no reason", score.CandidateID))
			}
		default:
			return pipeerrors.NewConsistencyCheckFailedError(
				fmt.Sprintf("candidate %s has unknown brief status %q", score.CandidateID, result.Status))
		}
	}
	return nil
}
