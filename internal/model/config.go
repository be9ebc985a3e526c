package model

import "time"

// Config holds all policygap configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Coverage     CoverageConfig     `yaml:"coverage" mapstructure:"coverage"`
	Tagging      TaggingConfig      `yaml:"tagging" mapstructure:"tagging"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Storage      StorageConfig      `yaml:"storage" mapstructure:"storage"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the structured-generation collaborator.
// An empty Provider disables every LLM-backed path.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"` // Never written to config files
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// CoverageConfig configures the calculator and improver
type CoverageConfig struct {
	Thresholds          CoverageThresholds `yaml:"thresholds" mapstructure:"thresholds"`
	GenerateSuggestions bool               `yaml:"generate_suggestions" mapstructure:"generate_suggestions"`
	MaxSuggestions      int                `yaml:"max_suggestions" mapstructure:"max_suggestions"`
}

// TaggingConfig configures the scenario tagger
type TaggingConfig struct {
	Strategy    string `yaml:"strategy" mapstructure:"strategy"` // auto, heuristic, llm
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// RateLimitingConfig throttles calls to the LLM provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures caching of structured-generation responses
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StorageConfig locates the SQLite run store
type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// HTTPConfig configures fetching policy documents from URLs
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	Color         string `yaml:"color" mapstructure:"color"` // auto, always, never
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "", // Disabled by default
			Timeout:     60,
			MaxTokens:   4000,
			Temperature: 0.2,
		},
		Coverage: CoverageConfig{
			Thresholds:          DefaultThresholds(),
			GenerateSuggestions: true,
			MaxSuggestions:      5,
		},
		Tagging: TaggingConfig{
			Strategy:    "auto",
			Concurrency: 4,
			BatchSize:   8,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".policygap/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Path: ".policygap/runs.db",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "policygap/0.1 (+https://github.com/ppiankov/policygap)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Output: OutputConfig{
			Color:         "auto",
			IncludeFooter: true,
		},
	}
}
