// Package provider selects and configures the AI service that replaces the
// photo background, and builds the prompts sent to it.
package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/id-photo/pkg/client"
	"github.com/menta2k/id-photo/pkg/dashscope"
	"github.com/menta2k/id-photo/pkg/ollama"
	"github.com/menta2k/id-photo/pkg/openaicompat"
)

// Provider names
const (
	SiliconFlow = "siliconflow"
	OpenRouter  = "openrouter"
	Tongyi      = "tongyi"
	Ollama      = "ollama"
)

// Model is a selectable model of a provider.
type Model struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Info describes a provider's defaults.
type Info struct {
	Name         string  `json:"name"`
	BaseURL      string  `json:"base_url"`
	DefaultModel string  `json:"default_model"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	NeedsAPIKey  bool    `json:"needs_api_key"`
	Models       []Model `json:"models"`
}

var registry = []Info{
	{
		Name:         Tongyi,
		BaseURL:      dashscope.DefaultBaseURL,
		DefaultModel: dashscope.DefaultModel,
		NeedsAPIKey:  true,
		Models: []Model{
			{"qwen-image-edit-plus", "Qwen-Image-Edit-Plus (recommended)"},
		},
	},
	{
		Name:         SiliconFlow,
		BaseURL:      "https://api.siliconflow.cn/v1",
		DefaultModel: "Pro/Qwen/Qwen2-VL-72B-Instruct",
		MaxTokens:    1000,
		NeedsAPIKey:  true,
		Models: []Model{
			{"Pro/Qwen/Qwen2-VL-72B-Instruct", "Qwen2-VL-72B (recommended)"},
			{"Pro/Qwen/Qwen2-VL-7B-Instruct", "Qwen2-VL-7B (fast)"},
			{"stabilityai/stable-diffusion-3-medium", "Stable Diffusion 3"},
			{"blackforestlabs/FLUX.1-schnell", "FLUX.1-schnell"},
		},
	},
	{
		Name:         OpenRouter,
		BaseURL:      "https://openrouter.ai/api/v1",
		DefaultModel: "anthropic/claude-3-haiku:beta",
		MaxTokens:    4096,
		NeedsAPIKey:  true,
		Models: []Model{
			{"anthropic/claude-3-haiku:beta", "Claude 3 Haiku (recommended)"},
			{"anthropic/claude-3-sonnet", "Claude 3 Sonnet"},
			{"openai/gpt-4o-mini", "GPT-4o Mini"},
			{"openai/gpt-4o", "GPT-4o"},
			{"google/gemini-pro-vision", "Gemini Pro Vision"},
			{"meta-llama/llama-3.2-11b-vision-instruct", "Llama 3.2 Vision"},
		},
	},
	{
		Name:         Ollama,
		BaseURL:      ollama.DefaultURL,
		DefaultModel: "qwen2.5vl",
		Models: []Model{
			{"qwen2.5vl", "Qwen2.5-VL (local)"},
		},
	},
}

// Providers returns every supported provider.
func Providers() []Info {
	out := make([]Info, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a provider by name. Unknown names return false.
func Lookup(name string) (Info, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, info := range registry {
		if info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}

// Config selects and authenticates a provider. Empty BaseURL and Model take
// the provider defaults.
type Config struct {
	Provider string        `json:"provider"`
	APIKey   string        `json:"-"`
	BaseURL  string        `json:"base_url"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout"`
}

// Resolve fills empty fields from the provider defaults.
func (c Config) Resolve() (Config, Info, error) {
	info, ok := Lookup(c.Provider)
	if !ok {
		return c, Info{}, fmt.Errorf("unknown provider %q", c.Provider)
	}
	c.Provider = info.Name
	if c.BaseURL == "" {
		c.BaseURL = info.BaseURL
	}
	if c.Model == "" {
		c.Model = info.DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	return c, info, nil
}

// New builds the client for cfg.Provider.
func New(cfg Config) (client.ImageTransformer, error) {
	cfg, info, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	if info.NeedsAPIKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: missing API key", info.Name, client.ErrUnauthorized)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	var c client.ImageTransformer
	switch info.Name {
	case Tongyi:
		c, err = dashscope.NewClient(cfg.BaseURL, cfg.APIKey, httpClient)
	case Ollama:
		c, err = ollama.NewClient(cfg.BaseURL, httpClient)
	default:
		c, err = openaicompat.NewClient(cfg.BaseURL, openaicompat.Options{
			APIKey:     cfg.APIKey,
			MaxTokens:  info.MaxTokens,
			HTTPClient: httpClient,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	return c, nil
}
