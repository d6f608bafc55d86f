// internal/common/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resonance-pipeline/internal/common/httpclient"
)

// Backend is one language-model service. Primary and fallback backends are
// interchangeable behind this interface so an outage degrades transparently.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// HTTPBackend talks to a text-generation API over HTTP.
type HTTPBackend struct {
	name        string
	baseURL     string
	apiKey      string
	temperature float64
	httpClient  *httpclient.Client
}

func NewHTTPBackend(name, baseURL, apiKey string, temperature float64, client *httpclient.Client) *HTTPBackend {
	return &HTTPBackend{
		name:        name,
		baseURL:     baseURL,
		apiKey:      apiKey,
		temperature: temperature,
		httpClient:  client,
	}
}

func (b *HTTPBackend) Name() string { return b.name }

func (b *HTTPBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	requestBody := map[string]interface{}{
		"prompt":      prompt,
		"max_tokens":  maxTokens,
		"temperature": b.temperature,
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/v1/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation failed (status %d): %s", resp.StatusCode, string(payload))
	}

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if strings.TrimSpace(apiResponse.Text) == "" {
		return "", fmt.Errorf("backend %s returned empty text", b.name)
	}

	return apiResponse.Text, nil
}
