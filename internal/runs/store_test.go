// internal/runs/store_test.go
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func createTestRun() *models.WorkflowRun {
	return &models.WorkflowRun{
		ID:             "run-1",
		AnchorID:       "anchor-1",
		CountryCode:    "KR",
		CandidateIDs:   []string{"c1", "c2"},
		RetainFraction: 0.1,
		WeightVersion:  "w-1",
		Status:         models.RunStatusDone,
		Ranked: []models.ResonanceScore{
			{AnchorID: "anchor-1", CandidateID: "c1", Total: 86.67, Tier: models.Tier1, WeightVersion: "w-1"},
			{AnchorID: "anchor-1", CandidateID: "c2", Total: 42.0, Tier: models.Tier3, WeightVersion: "w-1"},
		},
		Briefs: []models.BriefResult{
			{CandidateID: "c1", Status: models.BriefStatusGenerated, Brief: &models.CollaborationBrief{
				CandidateID: "c1",
				Title:       "Brief",
				Ideas:       []models.CollaborationIdea{{Description: "idea", EstimatedImpact: "high"}},
			}},
		},
		StartedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC),
	}
}

var runColumns = []string{
	"id", "anchor_id", "country_code", "candidate_ids", "retain_fraction",
	"weight_version", "status", "ranked", "briefs", "exclusions", "diagnostic",
	"started_at", "completed_at",
}

// ==========================
// Store Tests
// ==========================

func TestStore_Insert(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	run := createTestRun()

	mock.ExpectExec("INSERT INTO workflow_runs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Insert(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	run := createTestRun()

	mock.ExpectExec("UPDATE workflow_runs SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Update(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_UnknownRun(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	run := createTestRun()

	mock.ExpectExec("UPDATE workflow_runs SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), run)
	require.Error(t, err)

	var stdErr *pipeerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, pipeerrors.ErrCodeRunNotFound, stdErr.Code)
}

func TestStore_Get_RoundTripsPayloads(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)
	run := createTestRun()

	ranked, _ := json.Marshal(run.Ranked)
	briefs, _ := json.Marshal(run.Briefs)
	mock.ExpectQuery("FROM workflow_runs").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runColumns).AddRow(
			run.ID, run.AnchorID, run.CountryCode, "{c1,c2}",
			run.RetainFraction, run.WeightVersion, string(run.Status),
			ranked, briefs, []byte("null"), []byte("null"),
			run.StartedAt, run.CompletedAt,
		))

	loaded, err := store.Get(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, []string{"c1", "c2"}, loaded.CandidateIDs)
	assert.Equal(t, models.RunStatusDone, loaded.Status)
	require.Len(t, loaded.Ranked, 2)
	assert.Equal(t, 86.67, loaded.Ranked[0].Total)
	require.Len(t, loaded.Briefs, 1)
	assert.Equal(t, "Brief", loaded.Briefs[0].Brief.Title)
	assert.Nil(t, loaded.Diagnostic)
	assert.Equal(t, run.CompletedAt, loaded.CompletedAt)
}

func TestStore_Get_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectQuery("FROM workflow_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)

	var stdErr *pipeerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, pipeerrors.ErrCodeRunNotFound, stdErr.Code)
}

func TestStore_Insert_StorageFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectExec("INSERT INTO workflow_runs").WillReturnError(sql.ErrConnDone)

	err := store.Insert(context.Background(), createTestRun())
	require.Error(t, err)

	var stdErr *pipeerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, pipeerrors.ErrCodeStorageFailed, stdErr.Code)
}
