// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/models"
	collectbrandintel "resonance-pipeline/internal/workers/discovery/collect-brand-intel"
	generatebrief "resonance-pipeline/internal/workers/discovery/generate-brief"
	scoreresonance "resonance-pipeline/internal/workers/discovery/score-resonance"
)

// ==========================
// Test Fakes
// ==========================

type fakeCollector struct {
	mu   sync.Mutex
	fail map[string]error
}

func (f *fakeCollector) Execute(ctx context.Context, input *collectbrandintel.Input) (*collectbrandintel.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[input.BrandID]; ok {
		return nil, err
	}
	return &collectbrandintel.Output{
		Profile: &models.BrandProfile{
			BrandID:     input.BrandID,
			Name:        "Brand " + input.BrandID,
			CountryCode: input.CountryCode,
			Completeness: models.SectionCompleteness{
				Registry:      true,
				Firmographics: true,
				Media:         true,
			},
		},
	}, nil
}

// fakeScorer assigns each candidate a fixed total.
type fakeScorer struct {
	mu     sync.Mutex
	totals map[string]float64
	fail   map[string]error
}

func (f *fakeScorer) Execute(ctx context.Context, input *scoreresonance.Input) (*scoreresonance.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := input.Candidate.BrandID
	if err, ok := f.fail[id]; ok {
		return nil, err
	}
	return &scoreresonance.Output{
		Score: models.ResonanceScore{
			AnchorID:      input.Anchor.BrandID,
			CandidateID:   id,
			CandidateName: input.Candidate.Name,
			WeightVersion: input.Profile.Version,
			Total:         f.totals[id],
			Tier:          models.DefaultTierBreakpoints().Classify(f.totals[id]),
		},
	}, nil
}

type fakeBriefer struct {
	mu   sync.Mutex
	fail map[string]error
}

func (f *fakeBriefer) Execute(ctx context.Context, input *generatebrief.Input) (*generatebrief.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := input.Score.CandidateID
	if err, ok := f.fail[id]; ok {
		return nil, err
	}
	return &generatebrief.Output{
		Brief: &models.CollaborationBrief{
			CandidateID: id,
			Title:       "Brief for " + id,
			Ideas:       []models.CollaborationIdea{{Description: "idea", EstimatedImpact: "high"}},
		},
		Backend: "primary",
	}, nil
}

type memStore struct {
	mu   sync.Mutex
	runs map[string]models.WorkflowRun
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]models.WorkflowRun)}
}

func (s *memStore) Insert(ctx context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *memStore) Update(ctx context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return pipeerrors.NewRunNotFoundError(run.ID)
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *memStore) Get(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, pipeerrors.NewRunNotFoundError(runID)
	}
	return &run, nil
}

type staticWeights struct{}

func (staticWeights) Snapshot() models.WeightProfile {
	return models.WeightProfile{Version: "w-test", Weights: models.EqualWeights()}
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		WorkerPoolSize:        4,
		MinSuccessFraction:    0.5,
		DefaultRetainFraction: 0.1,
		RunDeadline:           time.Minute,
	}
}

func candidatePool(size int) ([]string, map[string]float64) {
	ids := make([]string, 0, size)
	totals := make(map[string]float64, size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("cand-%03d", i)
		ids = append(ids, id)
		totals[id] = float64(i) // cand-049 scores highest
	}
	return ids, totals
}

func newTestOrchestrator(t *testing.T, cfg *Config, collector Collector, scorer Scorer, briefer BriefGenerator) (*Orchestrator, *memStore) {
	store := newMemStore()
	o := New(cfg, collector, scorer, briefer, staticWeights{}, store, nil, nil, logger.NewTestLogger(t))
	return o, store
}

// ==========================
// Pipeline Tests
// ==========================

func TestOrchestrator_Execute_RetainsTopSlice(t *testing.T) {
	ids, totals := candidatePool(50)
	o, _ := newTestOrchestrator(t, createTestConfig(),
		&fakeCollector{},
		&fakeScorer{totals: totals},
		&fakeBriefer{},
	)

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusDone, run.Status)
	assert.Len(t, run.Ranked, 50)
	require.Len(t, run.Briefs, 5, "ceil(50 * 0.1) briefing entries")

	// The five strictly-highest totals, in rank order.
	expected := []string{"cand-049", "cand-048", "cand-047", "cand-046", "cand-045"}
	for i, brief := range run.Briefs {
		assert.Equal(t, expected[i], brief.CandidateID)
		assert.Equal(t, models.BriefStatusGenerated, brief.Status)
		require.NotNil(t, brief.Brief)
	}
	assert.Equal(t, "w-test", run.WeightVersion)
	assert.False(t, run.CompletedAt.IsZero())
}

func TestOrchestrator_Execute_RecoverableExclusions(t *testing.T) {
	ids, totals := candidatePool(50)
	collector := &fakeCollector{fail: map[string]error{
		"cand-010": pipeerrors.NewDataUnavailableError("cand-010", errors.New("all providers down")),
		"cand-020": pipeerrors.NewDataUnavailableError("cand-020", errors.New("all providers down")),
	}}
	o, _ := newTestOrchestrator(t, createTestConfig(), collector, &fakeScorer{totals: totals}, &fakeBriefer{})

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusDone, run.Status)
	assert.Len(t, run.Ranked, 48)
	assert.Len(t, run.Exclusions, 2)
	excluded := map[string]bool{}
	for _, e := range run.Exclusions {
		excluded[e.CandidateID] = true
		assert.NotEmpty(t, e.Reason)
	}
	assert.True(t, excluded["cand-010"])
	assert.True(t, excluded["cand-020"])
}

func TestOrchestrator_Execute_FailsBelowSuccessFraction(t *testing.T) {
	ids, totals := candidatePool(10)
	fail := make(map[string]error)
	for _, id := range ids[:6] {
		fail[id] = pipeerrors.NewDataUnavailableError(id, errors.New("down"))
	}
	o, _ := newTestOrchestrator(t, createTestConfig(), &fakeCollector{fail: fail}, &fakeScorer{totals: totals}, &fakeBriefer{})

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotNil(t, run.Diagnostic)
	assert.Equal(t, string(models.RunStatusScoring), run.Diagnostic.Stage)
	assert.Equal(t, 10, run.Diagnostic.Counts["poolSize"])
	assert.Equal(t, 4, run.Diagnostic.Counts["scored"])
	assert.NotEmpty(t, run.Diagnostic.FirstError)
	assert.Empty(t, run.Briefs)
}

func TestOrchestrator_Execute_AnchorFailureIsRunFatal(t *testing.T) {
	ids, totals := candidatePool(5)
	collector := &fakeCollector{fail: map[string]error{
		"anchor-1": pipeerrors.NewDataUnavailableError("anchor-1", errors.New("down")),
	}}
	o, _ := newTestOrchestrator(t, createTestConfig(), collector, &fakeScorer{totals: totals}, &fakeBriefer{})

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotNil(t, run.Diagnostic)
	assert.Equal(t, string(models.RunStatusCollecting), run.Diagnostic.Stage)
}

func TestOrchestrator_Execute_BriefFailureStillDone(t *testing.T) {
	ids, totals := candidatePool(20)
	briefer := &fakeBriefer{fail: map[string]error{
		"cand-019": pipeerrors.NewBriefGenerationFailedError("cand-019", errors.New("both backends down")),
	}}
	o, _ := newTestOrchestrator(t, createTestConfig(), &fakeCollector{}, &fakeScorer{totals: totals}, briefer)

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusDone, run.Status)
	require.Len(t, run.Briefs, 2)

	// Top-ranked candidate failed briefing but carries an explicit marker.
	assert.Equal(t, "cand-019", run.Briefs[0].CandidateID)
	assert.Equal(t, models.BriefStatusFailed, run.Briefs[0].Status)
	assert.NotEmpty(t, run.Briefs[0].Error)
	assert.Equal(t, models.BriefStatusGenerated, run.Briefs[1].Status)
}

func TestOrchestrator_Execute_DeadlineYieldsDonePartial(t *testing.T) {
	ids, totals := candidatePool(20)
	cfg := createTestConfig()
	cfg.RunDeadline = -time.Second // already expired when briefing starts
	o, _ := newTestOrchestrator(t, cfg, &fakeCollector{}, &fakeScorer{totals: totals}, &fakeBriefer{})

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusDonePartial, run.Status)
	require.NotNil(t, run.Diagnostic)
	require.Len(t, run.Briefs, 2)
	for _, brief := range run.Briefs {
		assert.Equal(t, models.BriefStatusFailed, brief.Status)
		assert.Contains(t, brief.Error, "deadline")
	}
	// Collection and scoring still completed for the whole pool.
	assert.Len(t, run.Ranked, 20)
}

// ==========================
// Ranking Tests
// ==========================

func TestRank_StableWithTieBreak(t *testing.T) {
	scored := []models.ResonanceScore{
		{CandidateID: "c", Total: 70},
		{CandidateID: "a", Total: 90},
		{CandidateID: "d", Total: 70},
		{CandidateID: "b", Total: 70},
	}

	ranked := rank(scored)
	ids := make([]string, len(ranked))
	for i, s := range ranked {
		ids[i] = s.CandidateID
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	// Input order never leaks into the result.
	again := rank([]models.ResonanceScore{scored[3], scored[1], scored[0], scored[2]})
	for i, s := range again {
		assert.Equal(t, ids[i], s.CandidateID)
	}
}

// ==========================
// Request Validation Tests
// ==========================

func TestOrchestrator_Execute_InvalidRequests(t *testing.T) {
	o, _ := newTestOrchestrator(t, createTestConfig(), &fakeCollector{}, &fakeScorer{}, &fakeBriefer{})

	tests := []struct {
		name string
		req  models.DiscoveryRequest
	}{
		{"missing anchor", models.DiscoveryRequest{CountryCode: "KR", CandidateIDs: []string{"c1"}}},
		{"missing country", models.DiscoveryRequest{AnchorID: "a", CandidateIDs: []string{"c1"}}},
		{"empty pool", models.DiscoveryRequest{AnchorID: "a", CountryCode: "KR"}},
		{"anchor in pool", models.DiscoveryRequest{AnchorID: "a", CountryCode: "KR", CandidateIDs: []string{"a"}}},
		{"retain fraction above one", models.DiscoveryRequest{AnchorID: "a", CountryCode: "KR", CandidateIDs: []string{"c1"}, RetainFraction: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Execute(context.Background(), tt.req)
			require.Error(t, err)

			var stdErr *pipeerrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, pipeerrors.ErrCodeInvalidRequest, stdErr.Code)
		})
	}
}

func TestOrchestrator_Execute_DeduplicatesPool(t *testing.T) {
	totals := map[string]float64{"c1": 90, "c2": 50}
	o, _ := newTestOrchestrator(t, createTestConfig(), &fakeCollector{}, &fakeScorer{totals: totals}, &fakeBriefer{})

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: []string{"c1", "c2", "c1", "c2"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, run.CandidateIDs)
	assert.Len(t, run.Ranked, 2)
}

// ==========================
// Persistence & Submission Tests
// ==========================

func TestOrchestrator_Execute_PersistsTerminalState(t *testing.T) {
	ids, totals := candidatePool(10)
	o, store := newTestOrchestrator(t, createTestConfig(), &fakeCollector{}, &fakeScorer{totals: totals}, &fakeBriefer{})

	run, err := o.Execute(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDone, stored.Status)
	assert.Len(t, stored.Ranked, 10)
	assert.Len(t, stored.Briefs, 1)
}

func TestOrchestrator_Submit_ReturnsPendingAndCompletes(t *testing.T) {
	ids, totals := candidatePool(10)
	o, store := newTestOrchestrator(t, createTestConfig(), &fakeCollector{}, &fakeScorer{totals: totals}, &fakeBriefer{})

	accepted, err := o.Submit(context.Background(), models.DiscoveryRequest{
		AnchorID:     "anchor-1",
		CountryCode:  "KR",
		CandidateIDs: ids,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, accepted.Status)

	require.Eventually(t, func() bool {
		run, err := store.Get(context.Background(), accepted.ID)
		return err == nil && run.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
}

// ==========================
// Consistency Check Tests
// ==========================

func TestCheckConsistency(t *testing.T) {
	brief := &models.CollaborationBrief{CandidateID: "a", Title: "t"}
	sortedRun := func() *models.WorkflowRun {
		return &models.WorkflowRun{
			Ranked: []models.ResonanceScore{
				{CandidateID: "a", Total: 90},
				{CandidateID: "b", Total: 80},
			},
			Briefs: []models.BriefResult{
				{CandidateID: "a", Status: models.BriefStatusGenerated, Brief: brief},
			},
		}
	}

	t.Run("valid run passes", func(t *testing.T) {
		run := sortedRun()
		assert.NoError(t, checkConsistency(run, run.Ranked[:1]))
	})

	t.Run("unsorted ranked list", func(t *testing.T) {
		run := sortedRun()
		run.Ranked[0], run.Ranked[1] = run.Ranked[1], run.Ranked[0]
		assert.Error(t, checkConsistency(run, nil))
	})

	t.Run("duplicate candidate", func(t *testing.T) {
		run := sortedRun()
		run.Ranked = append(run.Ranked, models.ResonanceScore{CandidateID: "a", Total: 10})
		assert.Error(t, checkConsistency(run, nil))
	})

	t.Run("retained candidate without briefing entry", func(t *testing.T) {
		run := sortedRun()
		assert.Error(t, checkConsistency(run, run.Ranked)) // "b" has no entry
	})

	t.Run("generated entry with empty brief", func(t *testing.T) {
		run := sortedRun()
		run.Briefs[0].Brief = nil
		assert.Error(t, checkConsistency(run, run.Ranked[:1]))
	})

	t.Run("failed entry without reason", func(t *testing.T) {
		run := sortedRun()
		run.Briefs[0] = models.BriefResult{CandidateID: "a", Status: models.BriefStatusFailed}
		assert.Error(t, checkConsistency(run, run.Ranked[:1]))
	})
}
