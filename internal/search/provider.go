// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search resolves web queries to deduplicated, quality-filtered
// source documents through the budget, rate limit, cache, and resilience
// services.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/coinbrief/internal/resilience"
	"github.com/pdiddy/coinbrief/pkg/types"
)

// Provider searches a single external web search API. Implementations return
// raw sources; cleaning and deduplication happen in the service.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, cfg types.SearchConfig) ([]types.SearchSource, error)
}

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests can
// substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// Tavily queries the Tavily web search API.
type Tavily struct {
	Client *http.Client
	APIKey string
}

// Name returns the provider identifier.
func (t *Tavily) Name() string { return "tavily" }

// tavilyRequest is the provider wire request.
type tavilyRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

// tavilyResponse is the provider wire response.
type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts the query to Tavily. Non-2xx responses surface as
// *resilience.StatusError so the retry layer can classify them.
func (t *Tavily) Search(ctx context.Context, query string, cfg types.SearchConfig) ([]types.SearchSource, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("tavily: API key is missing")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	depth := cfg.SearchDepth
	if depth == "" {
		depth = "basic"
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:       query,
		APIKey:      t.APIKey,
		SearchDepth: depth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: %w", &resilience.StatusError{Code: resp.StatusCode})
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing tavily response: %w", err)
	}

	sources := make([]types.SearchSource, 0, len(tr.Results))
	for _, r := range tr.Results {
		sources = append(sources, types.SearchSource{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
	}
	return sources, nil
}
