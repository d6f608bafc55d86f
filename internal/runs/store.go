// internal/runs/store.go
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/models"
)

// Store persists workflow runs in Postgres. The structured payloads (ranked
// scores, briefs, exclusions, diagnostic) live in JSONB columns; runs are
// retained after completion so outcome feedback can be attributed later.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes a freshly created run.
func (s *Store) Insert(ctx context.Context, run *models.WorkflowRun) error {
	ranked, briefs, exclusions, diagnostic, err := marshalPayloads(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_runs (
			id, anchor_id, country_code, candidate_ids, retain_fraction,
			weight_version, status, ranked, briefs, exclusions, diagnostic,
			started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.AnchorID,
		run.CountryCode,
		pq.Array(run.CandidateIDs),
		run.RetainFraction,
		run.WeightVersion,
		string(run.Status),
		ranked,
		briefs,
		exclusions,
		diagnostic,
		run.StartedAt,
		nullableTime(run.CompletedAt),
	); err != nil {
		return pipeerrors.NewStorageFailedError(fmt.Sprintf("insert run %s", run.ID), err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing run.
func (s *Store) Update(ctx context.Context, run *models.WorkflowRun) error {
	ranked, briefs, exclusions, diagnostic, err := marshalPayloads(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_runs SET
			weight_version = $2, status = $3, ranked = $4, briefs = $5,
			exclusions = $6, diagnostic = $7, completed_at = $8
		WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.WeightVersion,
		string(run.Status),
		ranked,
		briefs,
		exclusions,
		diagnostic,
		nullableTime(run.CompletedAt),
	)
	if err != nil {
		return pipeerrors.NewStorageFailedError(fmt.Sprintf("update run %s", run.ID), err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return pipeerrors.NewRunNotFoundError(run.ID)
	}
	return nil
}

// Get loads one run by id.
func (s *Store) Get(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	query := `
		SELECT id, anchor_id, country_code, candidate_ids, retain_fraction,
		       weight_version, status, ranked, briefs, exclusions, diagnostic,
		       started_at, completed_at
		FROM workflow_runs
		WHERE id = $1`

	var (
		run        models.WorkflowRun
		status     string
		ranked     []byte
		briefs     []byte
		exclusions []byte
		diagnostic []byte
		completed  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&run.AnchorID,
		&run.CountryCode,
		pq.Array(&run.CandidateIDs),
		&run.RetainFraction,
		&run.WeightVersion,
		&status,
		&ranked,
		&briefs,
		&exclusions,
		&diagnostic,
		&run.StartedAt,
		&completed,
	)
	if err == sql.ErrNoRows {
		return nil, pipeerrors.NewRunNotFoundError(runID)
	}
	if err != nil {
		return nil, pipeerrors.NewStorageFailedError(fmt.Sprintf("load run %s", runID), err)
	}

	run.Status = models.RunStatus(status)
	if completed.Valid {
		run.CompletedAt = completed.Time
	}
	if err := unmarshalPayloads(&run, ranked, briefs, exclusions, diagnostic); err != nil {
		return nil, err
	}
	return &run, nil
}

func marshalPayloads(run *models.WorkflowRun) (ranked, briefs, exclusions, diagnostic []byte, err error) {
	if ranked, err = json.Marshal(run.Ranked); err != nil {
		return nil, nil, nil, nil, pipeerrors.NewStorageFailedError("marshal ranked scores", err)
	}
	if briefs, err = json.Marshal(run.Briefs); err != nil {
		return nil, nil, nil, nil, pipeerrors.NewStorageFailedError("marshal briefs", err)
	}
	if exclusions, err = json.Marshal(run.Exclusions); err != nil {
		return nil, nil, nil, nil, pipeerrors.NewStorageFailedError("marshal exclusions", err)
	}
	if diagnostic, err = json.Marshal(run.Diagnostic); err != nil {
		return nil, nil, nil, nil, pipeerrors.NewStorageFailedError("marshal diagnostic", err)
	}
	return ranked, briefs, exclusions, diagnostic, nil
}

func unmarshalPayloads(run *models.WorkflowRun, ranked, briefs, exclusions, diagnostic []byte) error {
	if len(ranked) > 0 {
		if err := json.Unmarshal(ranked, &run.Ranked); err != nil {
			return pipeerrors.NewStorageFailedError("unmarshal ranked scores", err)
		}
	}
	if len(briefs) > 0 {
		if err := json.Unmarshal(briefs, &run.Briefs); err != nil {
			return pipeerrors.NewStorageFailedError("unmarshal briefs", err)
		}
	}
	if len(exclusions) > 0 {
		if err := json.Unmarshal(exclusions, &run.Exclusions); err != nil {
			return pipeerrors.NewStorageFailedError("unmarshal exclusions", err)
		}
	}
	if len(diagnostic) > 0 {
		if err := json.Unmarshal(diagnostic, &run.Diagnostic); err != nil {
			return pipeerrors.NewStorageFailedError("unmarshal diagnostic", err)
		}
	}
	return nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
