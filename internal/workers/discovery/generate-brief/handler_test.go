// internal/workers/discovery/generate-brief/handler_test.go
package generatebrief

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

const validBriefJSON = `{
	"title": "Co-branded lunch series",
	"ideas": [
		{"description": "Joint pop-up in Seoul", "estimatedImpact": "high"},
		{"description": "Shared loyalty campaign", "estimatedImpact": "medium"}
	],
	"nextSteps": ["Schedule intro call"]
}`

// stubBackend returns a canned response or error and records its prompts.
type stubBackend struct {
	name     string
	response string
	err      error
	prompts  []string
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func createTestConfig() *Config {
	return &Config{
		MaxTokens:       512,
		PrimaryTimeout:  time.Second,
		FallbackTimeout: time.Second,
	}
}

func createTestInput() *Input {
	return &Input{
		Anchor: &models.BrandProfile{
			BrandID:     "anchor-1",
			Name:        "Hana Foods",
			CountryCode: "KR",
		},
		Candidate: &models.BrandProfile{
			BrandID:     "cand-1",
			Name:        "Seoul Brews",
			CountryCode: "KR",
		},
		Score: models.ResonanceScore{
			AnchorID:    "anchor-1",
			CandidateID: "cand-1",
			Components: models.ComponentScores{
				CategoryOverlap:   1.0 / 3.0,
				GeographicOverlap: 1,
			},
			Total: 86.67,
			Tier:  models.Tier1,
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_PrimarySucceeds(t *testing.T) {
	primary := &stubBackend{name: "primary", response: validBriefJSON}
	fallback := &stubBackend{name: "fallback", response: validBriefJSON}
	handler := NewHandler(createTestConfig(), primary, fallback, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, "primary", output.Backend)
	assert.Equal(t, "Co-branded lunch series", output.Brief.Title)
	assert.Equal(t, "cand-1", output.Brief.CandidateID)
	assert.Len(t, output.Brief.Ideas, 2)
	assert.Equal(t, "Joint pop-up in Seoul", output.Brief.Ideas[0].Description)
	assert.Equal(t, []string{"Schedule intro call"}, output.Brief.NextSteps)
	assert.Empty(t, fallback.prompts, "fallback must not be called when primary succeeds")
}

func TestHandler_Execute_FallbackAfterPrimaryFailure(t *testing.T) {
	primary := &stubBackend{name: "primary", err: errors.New("rate limited")}
	fallback := &stubBackend{name: "fallback", response: validBriefJSON}
	handler := NewHandler(createTestConfig(), primary, fallback, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, "fallback", output.Backend)
	assert.Len(t, primary.prompts, 1)
	assert.Len(t, fallback.prompts, 1)
	assert.Equal(t, primary.prompts[0], fallback.prompts[0], "fallback must see the identical prompt")
}

func TestHandler_Execute_UnusableJSONCountsAsFailure(t *testing.T) {
	primary := &stubBackend{name: "primary", response: "I'd love to help but here is prose instead"}
	fallback := &stubBackend{name: "fallback", response: validBriefJSON}
	handler := NewHandler(createTestConfig(), primary, fallback, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, "fallback", output.Backend)
}

func TestHandler_Execute_BothBackendsFail(t *testing.T) {
	primary := &stubBackend{name: "primary", err: errors.New("rate limited")}
	fallback := &stubBackend{name: "fallback", response: `{"title": "", "ideas": []}`}
	handler := NewHandler(createTestConfig(), primary, fallback, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), createTestInput())
	require.Error(t, err)

	var stdErr *pipeerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, pipeerrors.ErrCodeBriefGenerationFailed, stdErr.Code)
	assert.Len(t, primary.prompts, 1, "exactly one primary attempt")
	assert.Len(t, fallback.prompts, 1, "exactly one fallback attempt")
}

func TestHandler_Execute_MarkdownFencedJSONSalvaged(t *testing.T) {
	fenced := "```json\n" + validBriefJSON + "\n```"
	primary := &stubBackend{name: "primary", response: fenced}
	handler := NewHandler(createTestConfig(), primary, &stubBackend{name: "fallback"}, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, "primary", output.Backend)
	assert.Equal(t, "Co-branded lunch series", output.Brief.Title)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), &stubBackend{name: "p"}, &stubBackend{name: "f"}, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilInput)

	input := createTestInput()
	input.Candidate = nil
	_, err = handler.Execute(context.Background(), input)
	assert.ErrorIs(t, err, ErrNilInput)
}

// ==========================
// Prompt Tests
// ==========================

func TestBuildPrompt_Deterministic(t *testing.T) {
	input := createTestInput()
	assert.Equal(t, buildPrompt(input), buildPrompt(input))
}

func TestBuildPrompt_CarriesScoreContext(t *testing.T) {
	prompt := buildPrompt(createTestInput())

	assert.Contains(t, prompt, "Hana Foods")
	assert.Contains(t, prompt, "Seoul Brews")
	assert.Contains(t, prompt, "86.67")
	assert.Contains(t, prompt, "TIER1")
	assert.Contains(t, prompt, `"ideas"`)
}
