// Package dashscope calls the Alibaba Cloud DashScope multimodal generation
// API (Tongyi Qwen image edit). The service answers with a URL to the edited
// image, which is downloaded and returned as a data URL.
package dashscope

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/id-photo/pkg/client"
	"github.com/menta2k/id-photo/pkg/codec"
)

const (
	// DefaultBaseURL is the public DashScope endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com"
	// DefaultModel is the image editing model.
	DefaultModel = "qwen-image-edit-plus"

	generationPath = "/api/v1/services/aigc/multimodal-generation/generation"
	negativePrompt = "low quality"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ContentItem struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type Message struct {
	Role    string        `json:"role"`
	Content []ContentItem `json:"content"`
}

type Input struct {
	Messages []Message `json:"messages"`
}

type Parameters struct {
	N              int    `json:"n"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	PromptExtend   bool   `json:"prompt_extend"`
	Watermark      bool   `json:"watermark"`
}

type GenerationRequest struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters"`
}

type GenerationResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Output    struct {
		Choices []struct {
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

// NewClient creates a DashScope client. An empty baseURL selects the public
// endpoint; a proxy base such as http://localhost:3001/api/tongyi also works.
func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("dashscope: %w: missing API key", client.ErrUnauthorized)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}, nil
}

// TransformImage submits the photo for editing and returns the result.
func (c *Client) TransformImage(ctx context.Context, req client.Request) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	payload := GenerationRequest{
		Model: model,
		Input: Input{Messages: []Message{{
			Role: "user",
			Content: []ContentItem{
				{Image: req.ImageDataURL},
				{Text: req.Prompt},
			},
		}}},
		Parameters: Parameters{
			N:              1,
			NegativePrompt: negativePrompt,
			PromptExtend:   true,
			Watermark:      false,
		},
	}

	body, err := c.post(ctx, generationPath, payload)
	if err != nil {
		return "", err
	}

	var resp GenerationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Code != "" {
		return "", fmt.Errorf("dashscope error %s: %s (request %s)", resp.Code, resp.Message, resp.RequestID)
	}

	imageURL := firstImage(resp)
	if imageURL == "" {
		return "", client.ErrNoImage
	}
	if strings.HasPrefix(imageURL, "data:") {
		return imageURL, nil
	}

	data, err := codec.Fetch(ctx, c.httpClient, imageURL)
	if err != nil {
		return "", fmt.Errorf("download result: %w", err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func firstImage(resp GenerationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, item := range choice.Message.Content {
			if item.Image != "" {
				return item.Image
			}
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
