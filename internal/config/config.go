package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/menta2k/id-photo/pkg/codec"
	"github.com/menta2k/id-photo/pkg/layout"
	"github.com/menta2k/id-photo/pkg/provider"
	"github.com/menta2k/id-photo/pkg/types"
)

// Environment variables read by LoadEnv.
const (
	EnvAPIKey   = "IDPHOTO_API_KEY"
	EnvProvider = "IDPHOTO_PROVIDER"
	EnvModel    = "IDPHOTO_MODEL"
	EnvBaseURL  = "IDPHOTO_BASE_URL"
	EnvAddr     = "IDPHOTO_ADDR"
	EnvDPI      = "IDPHOTO_DPI"
)

// Config holds the application configuration
type Config struct {
	Provider ProviderConfig `json:"provider"`
	Render   RenderConfig   `json:"render"`
	Output   OutputConfig   `json:"output"`
	Server   ServerConfig   `json:"server"`
}

// ProviderConfig selects the AI service for background replacement.
// The API key is never written to the config file.
type ProviderConfig struct {
	Name           string `json:"name"`
	Model          string `json:"model"`
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"-"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RenderConfig holds the print defaults
type RenderConfig struct {
	Preset       string `json:"preset"`
	DPI          int    `json:"dpi"`
	Background   string `json:"background"`
	Interpolator string `json:"interpolator"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"`
	OutputDir string `json:"output_dir"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Addr         string   `json:"addr"`
	ProxyTarget  string   `json:"proxy_target"`
	AllowOrigins []string `json:"allow_origins"`
	BodyLimit    string   `json:"body_limit"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:           provider.Tongyi,
			TimeoutSeconds: 300,
		},
		Render: RenderConfig{
			Preset:       types.OneInch.ID,
			DPI:          types.DefaultDPI,
			Background:   types.White.Name,
			Interpolator: "bilinear",
		},
		Output: OutputConfig{
			Format:    codec.FormatPNG,
			OutputDir: ".",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ProxyTarget:  "https://dashscope.aliyuncs.com",
			AllowOrigins: []string{"*"},
			BodyLimit:    "20M",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it exists, falls back to defaults otherwise, and
// applies the environment on top.
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			loaded, err := LoadFromFile(filename)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}
	if err := config.LoadEnv(""); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnv overlays IDPHOTO_* variables. envFile, or ./.env when empty, is
// loaded first if present; variables already set in the process win.
func (c *Config) LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvProvider)); v != "" {
		c.Provider.Name = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		c.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDPI)); v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDPI, err)
		}
		c.Render.DPI = dpi
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, ok := provider.Lookup(c.Provider.Name); !ok {
		return fmt.Errorf("provider.name %q is not supported", c.Provider.Name)
	}

	if c.Provider.TimeoutSeconds < 0 {
		return fmt.Errorf("provider.timeout_seconds must not be negative")
	}

	if _, ok := types.PresetByID(c.Render.Preset); !ok {
		return fmt.Errorf("render.preset %q is unknown", c.Render.Preset)
	}

	if c.Render.DPI < types.MinDPI || c.Render.DPI > types.MaxDPI {
		return fmt.Errorf("render.dpi must be between %d and %d", types.MinDPI, types.MaxDPI)
	}

	if _, err := types.ParseBackground(c.Render.Background); err != nil {
		return fmt.Errorf("render.background: %w", err)
	}

	switch codec.NormalizeFormat(c.Output.Format) {
	case codec.FormatPNG, codec.FormatWebP:
	default:
		return fmt.Errorf("output.format must be png or webp")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	return nil
}

// ProviderSettings converts the provider section for provider.New.
func (c *Config) ProviderSettings() provider.Config {
	return provider.Config{
		Provider: c.Provider.Name,
		APIKey:   c.Provider.APIKey,
		BaseURL:  c.Provider.BaseURL,
		Model:    c.Provider.Model,
		Timeout:  time.Duration(c.Provider.TimeoutSeconds) * time.Second,
	}
}

// RendererConfig converts the render section for layout.NewWithConfig.
// An invalid background falls back to white.
func (c *Config) RendererConfig() layout.Config {
	bg, err := types.ParseBackground(c.Render.Background)
	if err != nil {
		bg = types.White
	}
	return layout.Config{
		Background:   bg.Color,
		Interpolator: layout.InterpolatorByName(c.Render.Interpolator),
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "id-photo", "config.json")
}
