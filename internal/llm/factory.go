package llm

import (
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/policygap/internal/cache"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/worker"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	// Constructors return typed pointers; never let a nil one escape as a non-nil Provider
	switch provider {
	case "openai":
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "anthropic", "claude":
		p, err := NewAnthropicProvider(config)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "ollama":
		p, err := NewOllamaProvider(config)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the application config into provider config
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:    llmConfig.Provider,
		Model:       llmConfig.Model,
		APIKey:      llmConfig.APIKey,
		BaseURL:     llmConfig.BaseURL,
		Timeout:     llmConfig.Timeout,
		MaxTokens:   llmConfig.MaxTokens,
		Temperature: llmConfig.Temperature,
		HTTPProxy:   httpConfig.HTTPProxy,
		HTTPSProxy:  httpConfig.HTTPSProxy,
		NoProxy:     httpConfig.NoProxy,
	}
}

// NewGenerator assembles the structured-generation stack for cfg:
// provider → rate limiter → structured decoding → response cache.
// It returns (nil, nil) when no provider is configured.
func NewGenerator(cfg *model.Config, logger *log.Logger) (StructuredGenerator, error) {
	providerConfig := ConfigFromModel(cfg.LLM, cfg.HTTP)

	provider, err := NewProvider(providerConfig)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	var gen StructuredGenerator = NewStructured(NewRateLimited(provider, limiter), providerConfig)

	if cfg.Cache.Enabled {
		namespace := provider.Name() + "/" + providerConfig.Model
		gen = NewCached(gen, cache.New(cfg.Cache), namespace, cfg.Cache.DiskTTL, logger)
	}

	return gen, nil
}
