// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resonance-pipeline/internal/common/crm"
	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/common/metrics"
	"resonance-pipeline/internal/common/observability"
	"resonance-pipeline/internal/models"
	collectbrandintel "resonance-pipeline/internal/workers/discovery/collect-brand-intel"
	generatebrief "resonance-pipeline/internal/workers/discovery/generate-brief"
	scoreresonance "resonance-pipeline/internal/workers/discovery/score-resonance"
)

// Collector builds one brand's profile from the market-intel providers.
type Collector interface {
	Execute(ctx context.Context, input *collectbrandintel.Input) (*collectbrandintel.Output, error)
}

// Scorer computes the resonance score for one anchor/candidate pair.
type Scorer interface {
	Execute(ctx context.Context, input *scoreresonance.Input) (*scoreresonance.Output, error)
}

// BriefGenerator authors the collaboration brief for one retained pair.
type BriefGenerator interface {
	Execute(ctx context.Context, input *generatebrief.Input) (*generatebrief.Output, error)
}

// WeightSource hands out an immutable copy of the active weight profile.
type WeightSource interface {
	Snapshot() models.WeightProfile
}

// RunStore persists run state transitions.
type RunStore interface {
	Insert(ctx context.Context, run *models.WorkflowRun) error
	Update(ctx context.Context, run *models.WorkflowRun) error
	Get(ctx context.Context, runID string) (*models.WorkflowRun, error)
}

// Publisher pushes retained placements to the downstream CRM.
type Publisher interface {
	PushPlacement(ctx context.Context, placement *crm.Placement) (string, error)
}

// Orchestrator drives one discovery request through the full pipeline:
// collect profiles for the anchor and every candidate, score each pair,
// rank, retain the top slice, generate briefs for it, and verify the result
// before going terminal. All fan-out runs on a bounded worker pool.
type Orchestrator struct {
	config    *Config
	collector Collector
	scorer    Scorer
	briefer   BriefGenerator
	weights   WeightSource
	store     RunStore
	publisher Publisher
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func New(
	config *Config,
	collector Collector,
	scorer Scorer,
	briefer BriefGenerator,
	weights WeightSource,
	store RunStore,
	publisher Publisher,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:    config,
		collector: collector,
		scorer:    scorer,
		briefer:   briefer,
		weights:   weights,
		store:     store,
		publisher: publisher,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		now:       time.Now,
	}
}

// scoredCandidate is one candidate's collection+scoring outcome.
type scoredCandidate struct {
	candidateID string
	score       *models.ResonanceScore
	err         error
}

// Execute runs one discovery request to a terminal status. An error is
// returned only for invalid requests and storage failures before the run
// exists; every pipeline-level failure surfaces as a FAILED run with a
// diagnostic instead.
func (o *Orchestrator) Execute(ctx context.Context, req models.DiscoveryRequest) (*models.WorkflowRun, error) {
	run, profile, deadline, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	o.run(ctx, run, profile, deadline)
	return run, nil
}

// Submit accepts a request, creates the run, and drives it to completion in
// the background. The returned run is still PENDING; callers poll by id.
func (o *Orchestrator) Submit(ctx context.Context, req models.DiscoveryRequest) (*models.WorkflowRun, error) {
	run, profile, deadline, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	accepted := *run
	go o.run(context.Background(), run, profile, deadline)
	return &accepted, nil
}

func (o *Orchestrator) prepare(ctx context.Context, req models.DiscoveryRequest) (*models.WorkflowRun, models.WeightProfile, time.Time, error) {
	if err := validateRequest(req); err != nil {
		return nil, models.WeightProfile{}, time.Time{}, err
	}

	candidates := dedupe(req.CandidateIDs)
	retainFraction := req.RetainFraction
	if retainFraction == 0 {
		retainFraction = o.config.DefaultRetainFraction
	}
	deadlineBudget := o.config.RunDeadline
	if req.DeadlineMs > 0 {
		deadlineBudget = time.Duration(req.DeadlineMs) * time.Millisecond
	}

	profile := o.weights.Snapshot()
	startedAt := o.now().UTC()
	deadline := startedAt.Add(deadlineBudget)

	run := &models.WorkflowRun{
		ID:             uuid.NewString(),
		AnchorID:       req.AnchorID,
		CountryCode:    req.CountryCode,
		CandidateIDs:   candidates,
		RetainFraction: retainFraction,
		WeightVersion:  profile.Version,
		Status:         models.RunStatusPending,
		StartedAt:      startedAt,
	}
	if err := o.store.Insert(ctx, run); err != nil {
		return nil, models.WeightProfile{}, time.Time{}, err
	}

	o.logger.Info("Starting discovery run", map[string]interface{}{
		"runId":         run.ID,
		"anchorId":      run.AnchorID,
		"poolSize":      len(candidates),
		"weightVersion": profile.Version,
	})
	return run, profile, deadline, nil
}

// run drives the stage machine and records terminal bookkeeping.
func (o *Orchestrator) run(ctx context.Context, run *models.WorkflowRun, profile models.WeightProfile, deadline time.Time) {
	o.execute(ctx, run, profile, deadline)

	run.CompletedAt = o.now().UTC()
	o.persist(ctx, run)

	duration := run.CompletedAt.Sub(run.StartedAt)
	metrics.RunsCompleted.WithLabelValues(string(run.Status)).Inc()
	if o.obs != nil {
		o.obs.RecordRunProcessed(ctx, string(run.Status))
		o.obs.RecordRunDuration(ctx, duration, string(run.Status))
	}

	o.logger.Info("Discovery run finished", map[string]interface{}{
		"runId":    run.ID,
		"status":   string(run.Status),
		"ranked":   len(run.Ranked),
		"briefs":   len(run.Briefs),
		"excluded": len(run.Exclusions),
		"duration": duration.String(),
	})

	if run.Status == models.RunStatusDone || run.Status == models.RunStatusDonePartial {
		go o.publishPlacements(run)
	}
}

// execute drives the stage transitions and leaves run in a terminal state.
func (o *Orchestrator) execute(ctx context.Context, run *models.WorkflowRun, profile models.WeightProfile, deadline time.Time) {
	o.transition(ctx, run, models.RunStatusCollecting)
	collectStart := o.now()

	anchorOut, err := o.collector.Execute(ctx, &collectbrandintel.Input{
		BrandID:     run.AnchorID,
		CountryCode: run.CountryCode,
	})
	if err != nil {
		o.fail(ctx, run, string(models.RunStatusCollecting), err, map[string]int{
			"poolSize": len(run.CandidateIDs),
		})
		return
	}
	anchor := anchorOut.Profile

	results, profiles := o.collectAndScore(ctx, run, anchor, profile)
	metrics.StageDuration.WithLabelValues("COLLECTING").Observe(o.now().Sub(collectStart).Seconds())

	o.transition(ctx, run, models.RunStatusScoring)
	var (
		scored     []models.ResonanceScore
		firstErr   error
		poolSize   = len(run.CandidateIDs)
		scoreCount = 0
	)
	for _, result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}
			run.Exclusions = append(run.Exclusions, models.Exclusion{
				CandidateID: result.candidateID,
				Reason:      result.err.Error(),
			})
			metrics.CandidatesExcluded.WithLabelValues(errorCode(result.err)).Inc()
			continue
		}
		scored = append(scored, *result.score)
		scoreCount++
	}

	if poolSize > 0 && float64(scoreCount)/float64(poolSize) < o.config.MinSuccessFraction {
		err := pipeerrors.NewSuccessFractionError(scoreCount, poolSize, o.config.MinSuccessFraction)
		o.fail(ctx, run, string(models.RunStatusScoring), err, map[string]int{
			"poolSize": poolSize,
			"scored":   scoreCount,
			"excluded": len(run.Exclusions),
		})
		return
	}

	run.Ranked = rank(scored)
	o.transition(ctx, run, models.RunStatusRanked)

	retainCount := int(math.Ceil(float64(poolSize) * run.RetainFraction))
	if retainCount > len(run.Ranked) {
		retainCount = len(run.Ranked)
	}
	retained := run.Ranked[:retainCount]

	o.transition(ctx, run, models.RunStatusBriefing)
	briefStart := o.now()
	run.Briefs, err = o.generateBriefs(ctx, anchor, profiles, retained, deadline)
	metrics.StageDuration.WithLabelValues("BRIEFING").Observe(o.now().Sub(briefStart).Seconds())
	deadlineExpired := err != nil

	if err := checkConsistency(run, retained); err != nil {
		o.fail(ctx, run, string(models.RunStatusBriefing), err, map[string]int{
			"poolSize": poolSize,
			"ranked":   len(run.Ranked),
			"retained": retainCount,
			"briefs":   len(run.Briefs),
		})
		return
	}

	if deadlineExpired {
		run.Status = models.RunStatusDonePartial
		run.Diagnostic = &models.RunDiagnostic{
			Stage: string(models.RunStatusBriefing),
			Counts: map[string]int{
				"retained": retainCount,
				"briefed":  countGenerated(run.Briefs),
			},
			FirstError: "run deadline exceeded before all briefs were dispatched",
		}
		return
	}
	run.Status = models.RunStatusDone
}

// collectAndScore fans the per-candidate collect-then-score pipeline across
// the bounded worker pool. Collection and scoring for one candidate stay on
// one task so the per-candidate ordering holds; across candidates there is
// no ordering at all.
func (o *Orchestrator) collectAndScore(ctx context.Context, run *models.WorkflowRun, anchor *models.BrandProfile, profile models.WeightProfile) ([]scoredCandidate, map[string]*models.BrandProfile) {
	var (
		mu       sync.Mutex
		results  = make([]scoredCandidate, 0, len(run.CandidateIDs))
		profiles = make(map[string]*models.BrandProfile, len(run.CandidateIDs))
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.config.WorkerPoolSize)
	for _, candidateID := range run.CandidateIDs {
		candidateID := candidateID
		group.Go(func() error {
			result := scoredCandidate{candidateID: candidateID}

			collected, err := o.collector.Execute(groupCtx, &collectbrandintel.Input{
				BrandID:     candidateID,
				CountryCode: run.CountryCode,
			})
			if err != nil {
				result.err = err
			} else {
				scoredOut, err := o.scorer.Execute(groupCtx, &scoreresonance.Input{
					Anchor:    anchor,
					Candidate: collected.Profile,
					Profile:   profile,
				})
				if err != nil {
					result.err = err
				} else {
					result.score = &scoredOut.Score
				}
			}

			mu.Lock()
			results = append(results, result)
			if result.err == nil {
				profiles[candidateID] = collected.Profile
			}
			mu.Unlock()
			return nil
		})
	}
	group.Wait()

	return results, profiles
}

// generateBriefs runs brief generation for the retained slice only. Once the
// run deadline passes, no new briefing task starts; the remainder get
// explicit failure markers and the caller finishes the run DONE_PARTIAL.
func (o *Orchestrator) generateBriefs(ctx context.Context, anchor *models.BrandProfile, profiles map[string]*models.BrandProfile, retained []models.ResonanceScore, deadline time.Time) ([]models.BriefResult, error) {
	briefs := make([]models.BriefResult, len(retained))
	expired := false

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.config.WorkerPoolSize)
	for i, score := range retained {
		if o.now().After(deadline) {
			expired = true
			briefs[i] = models.BriefResult{
				CandidateID: score.CandidateID,
				Status:      models.BriefStatusFailed,
				Error:       "run deadline exceeded",
			}
			continue
		}

		i, score := i, score
		group.Go(func() error {
			candidate := profiles[score.CandidateID]
			out, err := o.briefer.Execute(groupCtx, &generatebrief.Input{
				Anchor:    anchor,
				Candidate: candidate,
				Score:     score,
			})
			if err != nil {
				briefs[i] = models.BriefResult{
					CandidateID: score.CandidateID,
					Status:      models.BriefStatusFailed,
					Error:       err.Error(),
				}
				return nil
			}
			briefs[i] = models.BriefResult{
				CandidateID: score.CandidateID,
				Status:      models.BriefStatusGenerated,
				Brief:       out.Brief,
			}
			return nil
		})
	}
	group.Wait()

	if expired {
		return briefs, fmt.Errorf("deadline expired during briefing")
	}
	return briefs, nil
}

// publishPlacements pushes retained placements to the CRM after the run went
// terminal. Push failures are logged and counted, never propagated.
func (o *Orchestrator) publishPlacements(run *models.WorkflowRun) {
	if o.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, brief := range run.Briefs {
		if brief.Status != models.BriefStatusGenerated {
			continue
		}
		score := findScore(run.Ranked, brief.CandidateID)
		if score == nil {
			continue
		}
		recordID, err := o.publisher.PushPlacement(ctx, &crm.Placement{
			BrandID:  brief.CandidateID,
			RunID:    run.ID,
			Total:    score.Total,
			Tier:     string(score.Tier),
			BriefRef: brief.Brief.Title,
		})
		if err != nil {
			metrics.CRMPushes.WithLabelValues("failure").Inc()
			o.logger.Warn("CRM placement push failed", map[string]interface{}{
				"runId":       run.ID,
				"candidateId": brief.CandidateID,
				"error":       err.Error(),
			})
			continue
		}
		metrics.CRMPushes.WithLabelValues("success").Inc()
		o.logger.Debug("Pushed placement to CRM", map[string]interface{}{
			"runId":       run.ID,
			"candidateId": brief.CandidateID,
			"recordId":    recordID,
		})
	}
}

// GetRun loads a run for the API surface.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	return o.store.Get(ctx, runID)
}

func (o *Orchestrator) transition(ctx context.Context, run *models.WorkflowRun, status models.RunStatus) {
	run.Status = status
	o.persist(ctx, run)
}

func (o *Orchestrator) fail(ctx context.Context, run *models.WorkflowRun, stage string, err error, counts map[string]int) {
	run.Status = models.RunStatusFailed
	run.Diagnostic = &models.RunDiagnostic{
		Stage:      stage,
		Counts:     counts,
		FirstError: err.Error(),
	}
	o.logger.Error("Discovery run failed", map[string]interface{}{
		"runId": run.ID,
		"stage": stage,
		"error": err.Error(),
	})
}

// persist writes the current run state; mid-run storage hiccups are logged
// and the run carries on. The terminal state gets a final write regardless.
func (o *Orchestrator) persist(ctx context.Context, run *models.WorkflowRun) {
	if err := o.store.Update(ctx, run); err != nil {
		o.logger.Warn("Failed to persist run state", map[string]interface{}{
			"runId":  run.ID,
			"status": string(run.Status),
			"error":  err.Error(),
		})
	}
}

// rank orders scores by total descending with candidate id as the
// deterministic tie-break.
func rank(scored []models.ResonanceScore) []models.ResonanceScore {
	ranked := make([]models.ResonanceScore, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	return ranked
}

func validateRequest(req models.DiscoveryRequest) error {
	if req.AnchorID == "" {
		return pipeerrors.NewInvalidRequestError("anchorId is required")
	}
	if req.CountryCode == "" {
		return pipeerrors.NewInvalidRequestError("countryCode is required")
	}
	if len(req.CandidateIDs) == 0 {
		return pipeerrors.NewInvalidRequestError("candidateIds must not be empty")
	}
	for _, id := range req.CandidateIDs {
		if id == req.AnchorID {
			return pipeerrors.NewInvalidRequestError("anchor cannot appear in the candidate pool")
		}
	}
	if req.RetainFraction < 0 || req.RetainFraction > 1 {
		return pipeerrors.NewInvalidRequestError(
			fmt.Sprintf("retainFraction %f outside (0, 1]", req.RetainFraction))
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func findScore(ranked []models.ResonanceScore, candidateID string) *models.ResonanceScore {
	for i := range ranked {
		if ranked[i].CandidateID == candidateID {
			return &ranked[i]
		}
	}
	return nil
}

func countGenerated(briefs []models.BriefResult) int {
	count := 0
	for _, brief := range briefs {
		if brief.Status == models.BriefStatusGenerated {
			count++
		}
	}
	return count
}

func errorCode(err error) string {
	var stdErr *pipeerrors.StandardError
	if errors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "UNKNOWN"
}
