package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/id-photo/pkg/client"
	"github.com/menta2k/id-photo/pkg/codec"
)

// DefaultURL is the local Ollama server.
const DefaultURL = "http://localhost:11434"

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string, httpClient *http.Client) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{client: api.NewClient(baseURL, httpClient)}, nil
}

// TransformImage sends the photo to a local multimodal model. Models that
// produce images return them in the message images; text-only replies are
// searched for a base64 data URL.
func (c *Client) TransformImage(ctx context.Context, req client.Request) (string, error) {
	// Local models on CPU are slow
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	imgBytes, err := codec.DataURLBytes(req.ImageDataURL)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	streamFalse := false
	chatReq := &api.ChatRequest{
		Model: req.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
	}

	var content strings.Builder
	var images []api.ImageData
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		images = append(images, resp.Message.Images...)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", mapError(err))
	}

	if len(images) > 0 {
		data := []byte(images[0])
		return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	if u, ok := client.ExtractDataURL(content.String()); ok {
		return u, nil
	}
	return "", client.ErrNoImage
}

func mapError(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return client.CheckStatus(se.StatusCode, []byte(se.ErrorMessage))
	}
	return err
}
