// internal/workers/discovery/score-resonance/handler.go
package scoreresonance

import (
	"context"
	"errors"
	"math"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/models"
)

const (
	TaskType = "score-resonance"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// Handler computes the weighted resonance score for one anchor/candidate
// pair. Scoring is pure: the same profiles and weight version always produce
// the same ResonanceScore, and missing sections score 0 instead of erroring.
type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil || input.Anchor == nil || input.Candidate == nil {
		return nil, ErrNilInput
	}
	if err := input.Profile.Weights.Validate(); err != nil {
		return nil, pipeerrors.NewWeightValidationFailedError(err.Error())
	}

	anchor, candidate := input.Anchor, input.Candidate

	components := models.ComponentScores{
		CategoryOverlap:      jaccard(anchor.ClassificationCodes, candidate.ClassificationCodes),
		AudienceOverlap:      h.tierAlignment(anchor, candidate, audienceTier),
		MediaCoMention:       h.coMentionScore(anchor, candidate),
		PositioningAlignment: h.tierAlignment(anchor, candidate, positioningTier),
		GeographicOverlap:    h.geographicOverlap(anchor.CountryCode, candidate.CountryCode),
	}

	w := input.Profile.Weights
	total := 100 * (components.CategoryOverlap*w.CategoryOverlap +
		components.AudienceOverlap*w.AudienceOverlap +
		components.MediaCoMention*w.MediaCoMention +
		components.PositioningAlignment*w.PositioningAlignment +
		components.GeographicOverlap*w.GeographicOverlap)
	total = clamp(total, 0, 100)

	score := models.ResonanceScore{
		AnchorID:      anchor.BrandID,
		CandidateID:   candidate.BrandID,
		CandidateName: candidate.Name,
		Components:    components,
		WeightVersion: input.Profile.Version,
		Total:         total,
		Tier:          h.config.Breakpoints.Classify(total),
	}

	h.logger.Debug("resonance scored", map[string]interface{}{
		"anchorId":    score.AnchorID,
		"candidateId": score.CandidateID,
		"total":       score.Total,
		"tier":        score.Tier,
	})

	return &Output{Score: score}, nil
}

// jaccard computes |A∩B| / |A∪B| over classification-code sets, 0 when
// either set is empty.
func jaccard(a, b []int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[int]struct{}, len(a))
	for _, code := range a {
		setA[code] = struct{}{}
	}
	setB := make(map[int]struct{}, len(b))
	for _, code := range b {
		setB[code] = struct{}{}
	}

	intersection := 0
	for code := range setA {
		if _, ok := setB[code]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// audienceTier and positioningTier select which scale-tier attribute a
// component compares: audience reach tracks headcount, market positioning
// tracks revenue.
func audienceTier(p *models.BrandProfile) int    { return p.EmployeeTier }
func positioningTier(p *models.BrandProfile) int { return p.RevenueTier }

func (h *Handler) tierAlignment(anchor, candidate *models.BrandProfile, tier func(*models.BrandProfile) int) float64 {
	if !anchor.Completeness.Firmographics || !candidate.Completeness.Firmographics {
		return 0
	}
	a, c := tier(anchor), tier(candidate)
	if a == 0 || c == 0 {
		return 0
	}

	diff := math.Abs(float64(a - c))
	return clamp(1-diff/float64(h.config.ScaleTierRange), 0, 1)
}

// coMentionScore counts candidate mentions that share an outlet with an
// anchor mention inside the co-mention window, then saturates.
func (h *Handler) coMentionScore(anchor, candidate *models.BrandProfile) float64 {
	if len(anchor.Mentions) == 0 || len(candidate.Mentions) == 0 {
		return 0
	}

	anchorByOutlet := make(map[string][]models.MediaMention)
	for _, m := range anchor.Mentions {
		anchorByOutlet[m.Outlet] = append(anchorByOutlet[m.Outlet], m)
	}

	coMentions := 0
	for _, cm := range candidate.Mentions {
		for _, am := range anchorByOutlet[cm.Outlet] {
			gap := cm.PublishedAt.Sub(am.PublishedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap <= h.config.CoMentionWindow {
				coMentions++
				break
			}
		}
	}

	return math.Min(1, float64(coMentions)/h.config.SaturationConstant)
}

func (h *Handler) geographicOverlap(anchorCountry, candidateCountry string) float64 {
	if anchorCountry == "" || candidateCountry == "" {
		return 0
	}
	if anchorCountry == candidateCountry {
		return 1
	}

	anchorBloc, okA := h.config.EconomicBlocs[anchorCountry]
	candidateBloc, okB := h.config.EconomicBlocs[candidateCountry]
	if okA && okB && anchorBloc == candidateBloc {
		return h.config.CrossMarketConstant
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
