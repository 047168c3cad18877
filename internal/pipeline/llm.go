// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the staged LLM transformation that turns gathered
// sources into a finished research report.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/coinbrief/internal/resilience"
)

// CompletionRequest is one LLM call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64

	// HighEffort requests extended reasoning on capable models.
	HighEffort bool
}

// CompletionResponse is the LLM's reply.
type CompletionResponse struct {
	Content    string
	TokensUsed int
}

// Backend abstracts the Generative AI API so tests can supply a mock.
type Backend interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// anthropicAPIBase is the messages endpoint. Declared as a var so tests can
// substitute an httptest server.
var anthropicAPIBase = "https://api.anthropic.com/v1/messages"

const anthropicVersion = "2023-06-01"

// AnthropicBackend calls the Anthropic messages API.
type AnthropicBackend struct {
	Client *http.Client
	APIKey string
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete posts the request to the messages API. Non-2xx responses surface
// as *resilience.StatusError so the retry layer can classify them.
func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if b.APIKey == "" {
		return CompletionResponse{}, fmt.Errorf("anthropic: API key is missing")
	}

	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.HighEffort {
		body.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: req.MaxTokens / 2}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("encoding anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIBase, bytes.NewReader(payload))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("creating anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	client := b.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, fmt.Errorf("anthropic: %w", &resilience.StatusError{Code: resp.StatusCode})
	}

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return CompletionResponse{}, fmt.Errorf("parsing anthropic response: %w", err)
	}

	var text string
	for _, c := range ar.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	if text == "" {
		return CompletionResponse{}, fmt.Errorf("anthropic: response contained no text content")
	}

	return CompletionResponse{
		Content:    text,
		TokensUsed: ar.Usage.InputTokens + ar.Usage.OutputTokens,
	}, nil
}
