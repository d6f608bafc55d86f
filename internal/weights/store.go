// internal/weights/store.go
package weights

import (
	"context"
	"database/sql"
	"fmt"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/models"
)

// Store persists weight profiles and per-version outcome counts in Postgres.
// Exactly one profile row is active at a time.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadActive returns the currently active weight profile, or nil when the
// table is empty and the caller should seed a default.
func (s *Store) LoadActive(ctx context.Context) (*models.WeightProfile, error) {
	query := `
		SELECT version, category_overlap, audience_overlap, media_co_mention,
		       positioning_alignment, geographic_overlap, updated_at
		FROM weight_profiles
		WHERE active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`

	var p models.WeightProfile
	err := s.db.QueryRowContext(ctx, query).Scan(
		&p.Version,
		&p.Weights.CategoryOverlap,
		&p.Weights.AudienceOverlap,
		&p.Weights.MediaCoMention,
		&p.Weights.PositioningAlignment,
		&p.Weights.GeographicOverlap,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pipeerrors.NewStorageFailedError("load active weight profile", err)
	}
	return &p, nil
}

// LoadHistory returns every stored profile joined with its outcome counts,
// for the tuning policy to pick from.
func (s *Store) LoadHistory(ctx context.Context) ([]ProfileStats, error) {
	query := `
		SELECT p.version, p.category_overlap, p.audience_overlap, p.media_co_mention,
		       p.positioning_alignment, p.geographic_overlap, p.updated_at,
		       COALESCE(o.outcomes, 0), COALESCE(o.successes, 0)
		FROM weight_profiles p
		LEFT JOIN weight_outcomes o ON o.version = p.version
		ORDER BY p.updated_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, pipeerrors.NewStorageFailedError("load weight history", err)
	}
	defer rows.Close()

	var history []ProfileStats
	for rows.Next() {
		var entry ProfileStats
		if err := rows.Scan(
			&entry.Profile.Version,
			&entry.Profile.Weights.CategoryOverlap,
			&entry.Profile.Weights.AudienceOverlap,
			&entry.Profile.Weights.MediaCoMention,
			&entry.Profile.Weights.PositioningAlignment,
			&entry.Profile.Weights.GeographicOverlap,
			&entry.Profile.UpdatedAt,
			&entry.Stats.Outcomes,
			&entry.Stats.Successes,
		); err != nil {
			return nil, pipeerrors.NewStorageFailedError("scan weight history row", err)
		}
		entry.Stats.Version = entry.Profile.Version
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, pipeerrors.NewStorageFailedError("iterate weight history", err)
	}
	return history, nil
}

// SaveActive persists a profile and flips it to the single active row in one
// transaction.
func (s *Store) SaveActive(ctx context.Context, profile models.WeightProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pipeerrors.NewStorageFailedError("begin weight profile tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE weight_profiles SET active = FALSE WHERE active = TRUE`); err != nil {
		return pipeerrors.NewStorageFailedError("deactivate weight profiles", err)
	}

	insert := `
		INSERT INTO weight_profiles (
			version, category_overlap, audience_overlap, media_co_mention,
			positioning_alignment, geographic_overlap, updated_at, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (version) DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			active = TRUE`
	if _, err := tx.ExecContext(ctx, insert,
		profile.Version,
		profile.Weights.CategoryOverlap,
		profile.Weights.AudienceOverlap,
		profile.Weights.MediaCoMention,
		profile.Weights.PositioningAlignment,
		profile.Weights.GeographicOverlap,
		profile.UpdatedAt,
	); err != nil {
		return pipeerrors.NewStorageFailedError(fmt.Sprintf("save weight profile %s", profile.Version), err)
	}

	if err := tx.Commit(); err != nil {
		return pipeerrors.NewStorageFailedError("commit weight profile tx", err)
	}
	return nil
}

// RecordOutcome increments the outcome counters for one version.
func (s *Store) RecordOutcome(ctx context.Context, version string, success bool) error {
	successInc := 0
	if success {
		successInc = 1
	}
	query := `
		INSERT INTO weight_outcomes (version, outcomes, successes)
		VALUES ($1, 1, $2)
		ON CONFLICT (version) DO UPDATE SET
			outcomes = weight_outcomes.outcomes + 1,
			successes = weight_outcomes.successes + $2`
	if _, err := s.db.ExecContext(ctx, query, version, successInc); err != nil {
		return pipeerrors.NewStorageFailedError(fmt.Sprintf("record outcome for %s", version), err)
	}
	return nil
}
