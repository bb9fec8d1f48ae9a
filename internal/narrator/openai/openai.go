// Package openai narrates through OpenAI's responses endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/storyloom/storyloom/internal/narrator"
)

// DefaultResponsesURL is the production responses endpoint.
const DefaultResponsesURL = "https://api.openai.com/v1/responses"

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4o-mini"

// Config configures the OpenAI narrator.
type Config struct {
	APIKey       string
	Model        string
	ResponsesURL string
	HTTPClient   *http.Client
}

// Client is a Narrator backed by the OpenAI responses API.
type Client struct {
	cfg Config
}

var _ narrator.Narrator = (*Client)(nil)

// New validates the configuration and returns a ready client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ResponsesURL == "" {
		cfg.ResponsesURL = DefaultResponsesURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}, nil
}

// Narrate implements narrator.Narrator.
func (c *Client) Narrate(ctx context.Context, req narrator.Request) (narrator.Response, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return narrator.Response{}, fmt.Errorf("prompt is required")
	}

	body := map[string]any{
		"model": c.cfg.Model,
		"input": prompt,
	}
	if req.MaxTokens > 0 {
		body["max_output_tokens"] = req.MaxTokens
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return narrator.Response{}, fmt.Errorf("marshal narrate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return narrator.Response{}, fmt.Errorf("build narrate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Credential material travels only in the Authorization header and is
	// never echoed in errors.
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return narrator.Response{}, fmt.Errorf("narrate request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return narrator.Response{}, fmt.Errorf("read narrate error body: %w", err)
		}
		return narrator.Response{}, fmt.Errorf("narrate request status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return narrator.Response{}, fmt.Errorf("decode narrate response: %w", err)
	}

	text := strings.TrimSpace(payload.OutputText)
	if text == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if strings.TrimSpace(content.Text) != "" {
					text = strings.TrimSpace(content.Text)
					break
				}
			}
			if text != "" {
				break
			}
		}
	}
	if text == "" {
		return narrator.Response{}, fmt.Errorf("narrate response missing output text")
	}
	return narrator.Response{Text: text}, nil
}
