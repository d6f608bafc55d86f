// internal/feedback/service.go
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/models"
)

// RunGetter loads completed runs for attribution.
type RunGetter interface {
	Get(ctx context.Context, runID string) (*models.WorkflowRun, error)
}

// OutcomeRecorder feeds realized outcomes back into weight tuning.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, version string, success bool) error
}

// Service accepts outcome feedback for completed runs. Each accepted record
// is persisted and attributed to the weight version that scored the run.
type Service struct {
	db      *sql.DB
	runs    RunGetter
	weights OutcomeRecorder
	logger  logger.Logger
	now     func() time.Time
}

func NewService(db *sql.DB, runs RunGetter, weights OutcomeRecorder, log logger.Logger) *Service {
	return &Service{
		db:      db,
		runs:    runs,
		weights: weights,
		logger:  log.WithFields(map[string]interface{}{"component": "feedback"}),
		now:     time.Now,
	}
}

// Submit validates and records one outcome observation. Feedback is rejected
// when the run is unknown, not yet terminal, or the candidate was never
// ranked in it.
func (s *Service) Submit(ctx context.Context, fb models.OutcomeFeedback) error {
	if fb.RunID == "" || fb.CandidateID == "" {
		return pipeerrors.NewFeedbackRejectedError("runId and candidateId are required")
	}

	run, err := s.runs.Get(ctx, fb.RunID)
	if err != nil {
		return err
	}
	if !run.Status.Terminal() {
		return pipeerrors.NewFeedbackRejectedError(
			fmt.Sprintf("run %s is still %s", run.ID, run.Status))
	}
	if !rankedCandidate(run, fb.CandidateID) {
		return pipeerrors.NewFeedbackRejectedError(
			fmt.Sprintf("candidate %s was not ranked in run %s", fb.CandidateID, run.ID))
	}

	if fb.ObservedAt.IsZero() {
		fb.ObservedAt = s.now().UTC()
	}

	query := `
		INSERT INTO outcome_feedback (run_id, candidate_id, success, weight_version, observed_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, query,
		fb.RunID, fb.CandidateID, fb.Success, run.WeightVersion, fb.ObservedAt,
	); err != nil {
		return pipeerrors.NewStorageFailedError(fmt.Sprintf("insert feedback for run %s", fb.RunID), err)
	}

	if err := s.weights.RecordOutcome(ctx, run.WeightVersion, fb.Success); err != nil {
		return err
	}

	s.logger.Info("Recorded outcome feedback", map[string]interface{}{
		"runId":         fb.RunID,
		"candidateId":   fb.CandidateID,
		"success":       fb.Success,
		"weightVersion": run.WeightVersion,
	})
	return nil
}

func rankedCandidate(run *models.WorkflowRun, candidateID string) bool {
	for _, score := range run.Ranked {
		if score.CandidateID == candidateID {
			return true
		}
	}
	return false
}
