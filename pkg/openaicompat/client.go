// Package openaicompat talks to OpenAI-compatible chat completion APIs
// (SiliconFlow, OpenRouter) that accept image_url content parts.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/id-photo/pkg/client"
)

// DefaultMaxTokens is used when Options.MaxTokens is zero.
const DefaultMaxTokens = 1000

type Client struct {
	baseURL    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	APIKey     string
	MaxTokens  int
	HTTPClient *http.Client
}

// OpenAI-compatible message format
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // Can be string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // Can be string or number
}

func NewClient(serverURL string, opts Options) (*Client, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		apiKey:     opts.APIKey,
		maxTokens:  opts.MaxTokens,
		httpClient: opts.HTTPClient,
	}, nil
}

// TransformImage sends the photo and prompt as one user message and looks
// for a base64 image data URL in the reply.
func (c *Client) TransformImage(ctx context.Context, req client.Request) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	payload := ChatCompletionRequest{
		Model: req.Model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "image_url", ImageURL: &ImageURL{URL: req.ImageDataURL}},
					{Type: "text", Text: req.Prompt},
				},
			},
		},
		MaxTokens: c.maxTokens,
		Stream:    false,
	}

	respBody, err := c.sendRequest(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", client.ErrNoImage)
	}

	text := messageText(resp.Choices[0].Message.Content)
	if u, ok := client.ExtractDataURL(text); ok {
		return u, nil
	}
	return "", client.ErrNoImage
}

// messageText flattens string or content-part replies into one string.
func messageText(content interface{}) string {
	switch content := content.(type) {
	case string:
		return content
	case []interface{}:
		var sb strings.Builder
		for _, item := range content {
			partMap, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := partMap["text"].(string); ok {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
			if img, ok := partMap["image_url"].(map[string]interface{}); ok {
				if u, ok := img["url"].(string); ok {
					sb.WriteString(u)
					sb.WriteString("\n")
				}
			}
		}
		return sb.String()
	}
	return ""
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := client.CheckStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
