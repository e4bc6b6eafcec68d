package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"veilleur/internal/core"
)

const serperEndpoint = "https://google.serper.dev/search"

// SerperProvider implements Provider using the Serper.dev Google API.
type SerperProvider struct {
	apiKey string
	client *http.Client
}

// NewSerperProvider creates a Serper search provider.
func NewSerperProvider(apiKey string) *SerperProvider {
	return &SerperProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetName returns the provider name.
func (s *SerperProvider) GetName() string {
	return "serper"
}

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
	GL    string `json:"gl,omitempty"`
	HL    string `json:"hl,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// Search performs a search against Serper and normalizes the results.
func (s *SerperProvider) Search(ctx context.Context, query string, config Config) ([]core.SearchResult, error) {
	payload := serperRequest{Query: query, Num: config.MaxResults}
	if config.Language != "" {
		payload.HL = config.Language
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode serper response: %w", err)
	}

	results := make([]core.SearchResult, 0, len(parsed.Organic))
	for _, item := range parsed.Organic {
		if core.ValidateURL(item.Link) != nil {
			continue
		}
		result := core.SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Source:  hostOf(item.Link),
		}
		if ts := parseDate(item.Date); ts != nil {
			result.PublishedDate = ts
		}
		results = append(results, result)
	}
	return results, nil
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// parseDate handles the handful of date shapes search APIs return.
func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"Jan 2, 2006",
		"2 Jan 2006",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}
