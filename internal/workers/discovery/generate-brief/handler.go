// internal/workers/discovery/generate-brief/handler.go
package generatebrief

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/genai"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/common/metrics"
	"resonance-pipeline/internal/models"
)

const (
	TaskType = "generate-brief"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// Handler turns one scored pair into a collaboration brief. The primary
// backend gets one shot; any failure (timeout, transport, unusable JSON)
// triggers exactly one retry against the fallback backend.
type Handler struct {
	config   *Config
	primary  genai.Backend
	fallback genai.Backend
	logger   logger.Logger
}

func NewHandler(config *Config, primary, fallback genai.Backend, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		primary:  primary,
		fallback: fallback,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Anchor == nil || input.Candidate == nil {
		return nil, ErrNilInput
	}

	candidateID := input.Score.CandidateID
	prompt := buildPrompt(input)

	h.logger.Info("Generating collaboration brief", map[string]interface{}{
		"anchorId":    input.Score.AnchorID,
		"candidateId": candidateID,
		"tier":        string(input.Score.Tier),
	})

	brief, err := h.generateWith(ctx, h.primary, h.config.PrimaryTimeout, prompt, candidateID)
	if err == nil {
		metrics.BriefsGenerated.WithLabelValues("GENERATED", h.primary.Name()).Inc()
		return &Output{Brief: brief, Backend: h.primary.Name()}, nil
	}

	h.logger.Warn("Primary backend failed, retrying with fallback", map[string]interface{}{
		"candidateId": candidateID,
		"backend":     h.primary.Name(),
		"error":       err.Error(),
	})

	brief, fallbackErr := h.generateWith(ctx, h.fallback, h.config.FallbackTimeout, prompt, candidateID)
	if fallbackErr == nil {
		metrics.BriefsGenerated.WithLabelValues("GENERATED", h.fallback.Name()).Inc()
		return &Output{Brief: brief, Backend: h.fallback.Name()}, nil
	}

	h.logger.Error("All backends failed for candidate", map[string]interface{}{
		"candidateId":   candidateID,
		"primaryError":  err.Error(),
		"fallbackError": fallbackErr.Error(),
	})
	metrics.BriefsGenerated.WithLabelValues("FAILED", h.fallback.Name()).Inc()

	return nil, pipeerrors.NewBriefGenerationFailedError(candidateID, fallbackErr)
}

func (h *Handler) generateWith(ctx context.Context, backend genai.Backend, timeout time.Duration, prompt, candidateID string) (*models.CollaborationBrief, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := backend.Generate(callCtx, prompt, h.config.MaxTokens)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, pipeerrors.NewLLMTimeoutError(backend.Name())
		}
		return nil, err
	}

	return parseBrief(text, candidateID)
}

// parseBrief decodes the backend's JSON answer. Backends occasionally wrap
// the object in markdown fences or prose; salvage the outermost object
// before declaring the text unusable.
func parseBrief(text, candidateID string) (*models.CollaborationBrief, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, errors.New("response contains no JSON object")
	}

	var payload briefPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	if payload.Title == "" || len(payload.Ideas) == 0 {
		return nil, errors.New("response is missing title or ideas")
	}

	brief := &models.CollaborationBrief{
		CandidateID: candidateID,
		Title:       payload.Title,
		NextSteps:   payload.NextSteps,
	}
	for _, idea := range payload.Ideas {
		brief.Ideas = append(brief.Ideas, models.CollaborationIdea{
			Description:     idea.Description,
			EstimatedImpact: idea.EstimatedImpact,
		})
	}
	return brief, nil
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
