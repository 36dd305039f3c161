// Package llm is the boundary to the generative-text service. It exposes a
// single completion primitive plus a model-listing query for diagnostics and
// classifies every failure as transient or permanent.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates text for a prompt using a named model.
type Client interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client for the given key. baseURL overrides the
// endpoint when non-empty, which also covers self-hosted compatible servers.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		cfg.BaseURL = strings.TrimRight(trimmed, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("llm client is not initialized")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Kind: KindPermanent, Err: fmt.Errorf("completion response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels returns the identifiers of the models the upstream service
// advertises, sorted. Diagnostics only.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("llm client is not initialized")
	}
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, classify(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// classify converts a go-openai error into a typed UpstreamError. Rate limits
// (429) and temporary unavailability (503) are transient; everything else is
// permanent. Message substrings cover proxies that mangle status codes.
func classify(err error) error {
	status := 0

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if status == 0 && errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}

	kind := KindPermanent
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		kind = KindTransient
	case status == 0 && containsTransientHint(err.Error()):
		kind = KindTransient
	}

	return &UpstreamError{Kind: kind, Status: status, Err: err}
}

func containsTransientHint(msg string) bool {
	lowered := strings.ToLower(msg)
	return strings.Contains(lowered, "rate limit") ||
		strings.Contains(lowered, "temporarily unavailable") ||
		strings.Contains(lowered, "429") ||
		strings.Contains(lowered, "503")
}
