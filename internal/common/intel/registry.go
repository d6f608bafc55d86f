// internal/common/intel/registry.go
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"resonance-pipeline/internal/common/httpclient"
)

// RegistryProvider queries the corporate-registry API for a brand's identity,
// classification codes and country of incorporation.
type RegistryProvider struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewRegistryProvider(baseURL, apiKey string, client *httpclient.Client) *RegistryProvider {
	return &RegistryProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (p *RegistryProvider) Name() string     { return "registry" }
func (p *RegistryProvider) Section() Section { return SectionRegistry }

func (p *RegistryProvider) Fetch(ctx context.Context, brandID, countryCode string) (*SectionData, error) {
	endpoint := fmt.Sprintf("%s/api/v1/brands/%s?country=%s",
		p.baseURL, url.PathEscape(brandID), url.QueryEscape(countryCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registry lookup failed (status %d): %s", resp.StatusCode, string(body))
	}

	var record struct {
		Name                string `json:"name"`
		CountryCode         string `json:"countryCode"`
		ClassificationCodes []int  `json:"classificationCodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &SectionData{
		Section:             SectionRegistry,
		Name:                record.Name,
		CountryCode:         record.CountryCode,
		ClassificationCodes: record.ClassificationCodes,
	}, nil
}
