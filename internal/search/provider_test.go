// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/coinbrief/internal/resilience"
	"github.com/pdiddy/coinbrief/pkg/types"
)

func withTavilyServer(t *testing.T, handler http.HandlerFunc) *Tavily {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := tavilyAPIBase
	tavilyAPIBase = ts.URL
	t.Cleanup(func() { tavilyAPIBase = old })

	return &Tavily{Client: ts.Client(), APIKey: "test-key"}
}

func TestTavilySearch(t *testing.T) {
	var gotBody tavilyRequest
	p := withTavilyServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Solana Docs", "url": "https://docs.solana.com", "content": "Proof of history"},
				{"title": "Messari", "url": "https://messari.io", "content": "Research"},
			},
		})
	})

	cfg := types.SearchConfig{MaxResults: 7, SearchDepth: "advanced"}
	sources, err := p.Search(context.Background(), "solana overview", cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
	if sources[0].Title != "Solana Docs" || sources[0].URL != "https://docs.solana.com" {
		t.Errorf("sources[0] = %+v", sources[0])
	}
	if gotBody.Query != "solana overview" || gotBody.MaxResults != 7 || gotBody.SearchDepth != "advanced" {
		t.Errorf("request body = %+v", gotBody)
	}
	if gotBody.APIKey != "test-key" {
		t.Error("API key not sent")
	}
}

func TestTavilyStatusErrorsAreClassified(t *testing.T) {
	p := withTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := p.Search(context.Background(), "q", types.SearchConfig{})
	var se *resilience.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *resilience.StatusError", err)
	}
	if se.Code != 503 {
		t.Errorf("Code = %d, want 503", se.Code)
	}
	if !resilience.Retryable(err) {
		t.Error("503 should be retryable")
	}
}

func TestTavilyNilClientUsesDefault(t *testing.T) {
	p := withTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Docs", "url": "https://example.com", "content": "text"},
			},
		})
	})
	p.Client = nil

	sources, err := p.Search(context.Background(), "q", types.SearchConfig{})
	if err != nil {
		t.Fatalf("Search with nil client: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("len(sources) = %d, want 1", len(sources))
	}
}

func TestTavilyMissingAPIKey(t *testing.T) {
	p := &Tavily{Client: http.DefaultClient}
	if _, err := p.Search(context.Background(), "q", types.SearchConfig{}); err == nil {
		t.Fatal("want error for missing API key")
	}
}
