// internal/common/intel/mediawatch.go
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"resonance-pipeline/internal/models"
)

// MediawatchProvider reads a brand's timestamped media mentions from the
// mentions index, bounded to the co-mention lookback window.
type MediawatchProvider struct {
	client       *elasticsearch.Client
	index        string
	lookbackDays int
}

func NewMediawatchProvider(client *elasticsearch.Client, index string, lookbackDays int) *MediawatchProvider {
	return &MediawatchProvider{
		client:       client,
		index:        index,
		lookbackDays: lookbackDays,
	}
}

func (p *MediawatchProvider) Name() string     { return "mediawatch" }
func (p *MediawatchProvider) Section() Section { return SectionMedia }

func (p *MediawatchProvider) Fetch(ctx context.Context, brandID, countryCode string) (*SectionData, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"brandId": brandID},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"range": map[string]interface{}{
							"publishedAt": map[string]interface{}{
								"gte": fmt.Sprintf("now-%dd/d", p.lookbackDays),
							},
						},
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"publishedAt": map[string]interface{}{"order": "desc"}},
		},
	}

	body, _ := json.Marshal(queryBody)
	size := 500

	req := esapi.SearchRequest{
		Index: []string{p.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, fmt.Errorf("mentions search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("mentions search error: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Outlet      string    `json:"outlet"`
					Headline    string    `json:"headline"`
					PublishedAt time.Time `json:"publishedAt"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	mentions := make([]models.MediaMention, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		mentions = append(mentions, models.MediaMention{
			Outlet:      hit.Source.Outlet,
			Headline:    hit.Source.Headline,
			PublishedAt: hit.Source.PublishedAt,
		})
	}

	return &SectionData{
		Section:  SectionMedia,
		Mentions: mentions,
	}, nil
}
