// internal/common/crm/client.go
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client pushes ranked placements into the downstream CRM. The pipeline never
// blocks on CRM availability; callers log push failures and move on.
type Client struct {
	baseURL    string
	oauthToken string
	httpClient *http.Client
}

// Placement is one retained candidate's record for CRM ingestion.
type Placement struct {
	BrandID  string  `json:"Brand_Id"`
	RunID    string  `json:"Run_Id"`
	Total    float64 `json:"Resonance_Total"`
	Tier     string  `json:"Tier"`
	BriefRef string  `json:"Brief_Ref,omitempty"`
}

type pushResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewClient(baseURL, oauthToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		oauthToken: oauthToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PushPlacement records one placement and returns the CRM record id.
func (c *Client) PushPlacement(ctx context.Context, placement *Placement) (string, error) {
	url := fmt.Sprintf("%s/Placements", c.baseURL)

	payload := map[string]interface{}{
		"data": []Placement{*placement},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal placement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.oauthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to push placement (status %d): %s", resp.StatusCode, string(body))
	}

	var pushResp pushResponse
	if err := json.Unmarshal(body, &pushResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(pushResp.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}

	if pushResp.Data[0].Status != "success" {
		return "", fmt.Errorf("placement push failed: %s", pushResp.Data[0].Message)
	}

	return pushResp.Data[0].Details.ID, nil
}
