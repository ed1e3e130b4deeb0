package model

import "time"

// Config is the full injected configuration surface for the pipeline. Core
// packages receive this struct from the CLI layer and never read environment
// state directly.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Verify      VerifyConfig      `yaml:"verify" mapstructure:"verify"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Dedup       DedupConfig       `yaml:"dedup" mapstructure:"dedup"`
	Trust       TrustConfig       `yaml:"trust" mapstructure:"trust"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the external judgment source.
type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

type ExtractConfig struct {
	// MaxSchemaRetries is how many corrective retries the extractor makes
	// when structural validation of the output fails.
	MaxSchemaRetries int `yaml:"max_schema_retries" mapstructure:"max_schema_retries"`

	// MaxContextMessages caps how many messages are formatted into one
	// extraction prompt.
	MaxContextMessages int `yaml:"max_context_messages" mapstructure:"max_context_messages"`
}

type VerifyConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`

	// Workers bounds concurrent fact verifications within one context.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

type RateLimitConfig struct {
	CallsPerMinute int `yaml:"calls_per_minute" mapstructure:"calls_per_minute"`
	Burst          int `yaml:"burst" mapstructure:"burst"`
}

type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

type TrustConfig struct {
	// ArtifactPath points at the versioned calibration artifact (weights
	// and expected-density estimator parameters). Empty means built-in
	// defaults.
	ArtifactPath string `yaml:"artifact_path,omitempty" mapstructure:"artifact_path"`

	// GroundTruthPath optionally points at labeled annotations; when set,
	// completeness and phase accuracy are computed against them instead of
	// the density estimator.
	GroundTruthPath string `yaml:"ground_truth_path,omitempty" mapstructure:"ground_truth_path"`
}

type ConcurrencyConfig struct {
	// ContextWorkers bounds how many project contexts run in parallel.
	ContextWorkers int `yaml:"context_workers" mapstructure:"context_workers"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30 * time.Second,
			MaxTokens: 2000,
		},
		Extract: ExtractConfig{
			MaxSchemaRetries:   3,
			MaxContextMessages: 15,
		},
		Verify: VerifyConfig{
			MaxAttempts: 3,
			BackoffBase: time.Second,
			CallTimeout: 30 * time.Second,
			Workers:     4,
		},
		RateLimit: RateLimitConfig{
			CallsPerMinute: 50,
			Burst:          5,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.90,
		},
		Concurrency: ConcurrencyConfig{
			ContextWorkers: 4,
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}
