package search

import (
	"context"

	"veilleur/internal/core"
)

// MockProvider returns scripted results for tests and dry runs.
type MockProvider struct {
	Name    string
	Results []core.SearchResult
	Err     error
	Calls   int
}

// NewMockProvider creates a mock provider with fixed results.
func NewMockProvider(name string, results []core.SearchResult) *MockProvider {
	return &MockProvider{Name: name, Results: results}
}

// GetName returns the configured mock name.
func (m *MockProvider) GetName() string {
	return m.Name
}

// Search returns the scripted results, truncated to MaxResults.
func (m *MockProvider) Search(ctx context.Context, query string, config Config) ([]core.SearchResult, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	results := m.Results
	if config.MaxResults > 0 && len(results) > config.MaxResults {
		results = results[:config.MaxResults]
	}
	return results, nil
}
