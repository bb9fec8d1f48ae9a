// Package gemini narrates through Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/storyloom/storyloom/internal/narrator"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// Client is a Narrator backed by the Gemini API.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

var _ narrator.Narrator = (*Client)(nil)

// New dials the Gemini API. Pass an empty model to use DefaultModel.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client: client,
		model:  client.GenerativeModel(model),
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Narrate implements narrator.Narrator.
func (c *Client) Narrate(ctx context.Context, req narrator.Request) (narrator.Response, error) {
	model := c.model
	if req.MaxTokens > 0 {
		// Copy so concurrent calls with different limits don't race.
		clone := *c.model
		tokens := int32(req.MaxTokens)
		clone.MaxOutputTokens = &tokens
		model = &clone
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return narrator.Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return narrator.Response{}, fmt.Errorf("gemini returned no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return narrator.Response{}, fmt.Errorf("gemini returned no text parts")
	}
	return narrator.Response{Text: sb.String()}, nil
}
