// internal/common/intel/firmographics.go
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

// FirmographicsProvider queries the firmographics API for a brand's
// scale-tier attributes (revenue and employee tiers).
type FirmographicsProvider struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewFirmographicsProvider(baseURL, apiKey string, client *httpclient.Client) *FirmographicsProvider {
	return &FirmographicsProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (p *FirmographicsProvider) Name() string     { return "firmographics" }
func (p *FirmographicsProvider) Section() Section { return SectionFirmographics }

func (p *FirmographicsProvider) Fetch(ctx context.Context, brandID, countryCode string) (*SectionData, error) {
	endpoint := fmt.Sprintf("%s/api/v1/firmographics/%s?country=%s",
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
		return nil, fmt.Errorf("firmographics lookup failed (status %d): %s", resp.StatusCode, string(body))
	}

	var record struct {
		RevenueTier  int `json:"revenueTier"`
		EmployeeTier int `json:"employeeTier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &SectionData{
		Section:      SectionFirmographics,
		RevenueTier:  record.RevenueTier,
		EmployeeTier: record.EmployeeTier,
	}, nil
}
