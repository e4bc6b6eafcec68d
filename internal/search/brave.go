package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"veilleur/internal/core"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider implements Provider using the Brave Search API.
type BraveProvider struct {
	apiKey string
	client *http.Client
}

// NewBraveProvider creates a Brave search provider.
func NewBraveProvider(apiKey string) *BraveProvider {
	return &BraveProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetName returns the provider name.
func (b *BraveProvider) GetName() string {
	return "brave"
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}

// Search performs a search against Brave and normalizes the results.
func (b *BraveProvider) Search(ctx context.Context, query string, config Config) ([]core.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(config.MaxResults))
	if config.Language != "" {
		params.Set("search_lang", config.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build brave request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", b.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave returned status %d", resp.StatusCode)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}

	results := make([]core.SearchResult, 0, len(parsed.Web.Results))
	for _, item := range parsed.Web.Results {
		if core.ValidateURL(item.URL) != nil {
			continue
		}
		result := core.SearchResult{
			Title:   item.Title,
			URL:     item.URL,
			Snippet: item.Description,
			Source:  hostOf(item.URL),
		}
		if ts := parseDate(item.PageAge); ts != nil {
			result.PublishedDate = ts
		}
		results = append(results, result)
	}
	return results, nil
}
