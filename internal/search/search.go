// Package search provides a uniform search result shape over multiple
// web search back-ends, with ordered failover between providers.
package search

import (
	"context"
	"fmt"
	"time"

	"veilleur/internal/core"
	"veilleur/internal/logger"
)

// Provider defines the capability contract for a search back-end.
type Provider interface {
	// Search performs a query and normalizes the raw response.
	Search(ctx context.Context, query string, config Config) ([]core.SearchResult, error)

	// GetName returns the provider name.
	GetName() string
}

// Config holds per-request search options.
type Config struct {
	MaxResults int
	Depth      core.SearchDepth
	Language   string
	Timeout    time.Duration
}

// Registry holds providers in registration order and fails over
// between them.
type Registry struct {
	providers []Provider
	byName    map[string]Provider
	preferred string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register appends a provider. The first registered provider is the
// default preferred one.
func (r *Registry) Register(p Provider) {
	name := p.GetName()
	if _, exists := r.byName[name]; exists {
		return
	}
	r.providers = append(r.providers, p)
	r.byName[name] = p
	if r.preferred == "" {
		r.preferred = name
	}
}

// SetPreferred selects which provider is attempted first.
func (r *Registry) SetPreferred(name string) error {
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("%w: unknown search provider %q", core.ErrValidation, name)
	}
	r.preferred = name
	return nil
}

// Names lists registered providers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.GetName()
	}
	return names
}

// Search tries the preferred provider first, then the remaining
// providers in registration order. It fails only when all providers
// fail; partial failures are logged and swallowed.
func (r *Registry) Search(ctx context.Context, query string, config Config) ([]core.SearchResult, string, error) {
	if len(r.providers) == 0 {
		return nil, "", fmt.Errorf("%w: no search providers registered", core.ErrSearchFailure)
	}

	ordered := make([]Provider, 0, len(r.providers))
	if p, ok := r.byName[r.preferred]; ok {
		ordered = append(ordered, p)
	}
	for _, p := range r.providers {
		if p.GetName() != r.preferred {
			ordered = append(ordered, p)
		}
	}

	var lastErr error
	for _, p := range ordered {
		results, err := p.Search(ctx, query, config)
		if err != nil {
			logger.Warn("search provider failed", "provider", p.GetName(), "error", err.Error())
			lastErr = err
			continue
		}
		return results, p.GetName(), nil
	}
	return nil, "", fmt.Errorf("%w: all providers failed: %v", core.ErrSearchFailure, lastErr)
}
