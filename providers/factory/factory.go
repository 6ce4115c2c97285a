// Package factory resolves a concrete llm.Provider from explicit
// configuration with environment fallbacks.
package factory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oneagenthq/oneagent/llm"
	"github.com/oneagenthq/oneagent/providers/gemini"
	"github.com/oneagenthq/oneagent/providers/openai"
)

// Provider names accepted by FromConfig.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Environment keys consulted when Config fields are blank.
const (
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
)

// Config selects and configures a provider. Explicit values always win
// over the environment.
type Config struct {
	// Provider is "openai" or "gemini". Blank means auto-detect from
	// whichever API key is available, preferring openai.
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// FromConfig builds the provider described by cfg.
func FromConfig(ctx context.Context, cfg Config) (llm.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = detect(cfg)
	}
	switch name {
	case ProviderOpenAI:
		return buildOpenAI(cfg)
	case ProviderGemini:
		return buildGemini(ctx, cfg)
	case "":
		return nil, fmt.Errorf("no provider configured: set %s or %s", EnvOpenAIAPIKey, EnvGeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown provider %q, use one of: %s, %s", name, ProviderOpenAI, ProviderGemini)
	}
}

// FromEnv builds a provider purely from the environment.
func FromEnv(ctx context.Context) (llm.Provider, error) {
	return FromConfig(ctx, Config{})
}

func detect(cfg Config) string {
	if cfg.APIKey != "" || getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if getenv(EnvGeminiAPIKey) != "" {
		return ProviderGemini
	}
	return ""
}

func buildOpenAI(cfg Config) (llm.Provider, error) {
	key := cfg.APIKey
	if key == "" {
		key = getenv(EnvOpenAIAPIKey)
	}
	if key == "" {
		return nil, fmt.Errorf("openai provider selected but no api key: set %s", EnvOpenAIAPIKey)
	}
	opts := []openai.ClientOption{}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = getenv(EnvOpenAIBaseURL)
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithDefaultModel(cfg.Model))
	}
	return openai.NewClient(key, opts...)
}

func buildGemini(ctx context.Context, cfg Config) (llm.Provider, error) {
	key := cfg.APIKey
	if key == "" {
		key = getenv(EnvGeminiAPIKey)
	}
	if key == "" {
		return nil, fmt.Errorf("gemini provider selected but no api key: set %s", EnvGeminiAPIKey)
	}
	opts := []gemini.ClientOption{}
	if cfg.Model != "" {
		opts = append(opts, gemini.WithDefaultModel(cfg.Model))
	}
	return gemini.NewClient(ctx, key, opts...)
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
