package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"veilleur/internal/core"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyProvider implements Provider using the Tavily research API.
type TavilyProvider struct {
	apiKey string
	client *http.Client
}

// NewTavilyProvider creates a Tavily search provider.
func NewTavilyProvider(apiKey string) *TavilyProvider {
	return &TavilyProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetName returns the provider name.
func (t *TavilyProvider) GetName() string {
	return "tavily"
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Search performs a search against Tavily and normalizes the results.
// Tavily natively understands the basic/advanced depth distinction.
func (t *TavilyProvider) Search(ctx context.Context, query string, config Config) ([]core.SearchResult, error) {
	depth := "basic"
	if config.Depth == core.SearchDepthAdvanced {
		depth = "advanced"
	}
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		MaxResults:  config.MaxResults,
		SearchDepth: depth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	results := make([]core.SearchResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if core.ValidateURL(item.URL) != nil {
			continue
		}
		result := core.SearchResult{
			Title:   item.Title,
			URL:     item.URL,
			Snippet: item.Content,
			Source:  hostOf(item.URL),
			Score:   clampScore(item.Score),
		}
		if ts := parseDate(item.PublishedDate); ts != nil {
			result.PublishedDate = ts
		}
		results = append(results, result)
	}
	return results, nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
