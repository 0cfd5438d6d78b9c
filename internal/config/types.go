package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so koanf can parse "1s"/"500ms" strings.
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Modes enumerates the pipeline modes.
var Modes = []string{"fast", "balanced", "quality", "adaptive"}

// IsMode reports whether the given name is a known pipeline mode.
func IsMode(name string) bool {
	for _, m := range Modes {
		if m == name {
			return true
		}
	}
	return false
}

// StoreConfig holds the pgvector connection settings.
type StoreConfig struct {
	DSN   string `koanf:"dsn"`
	Table string `koanf:"table"`
}

// Validate validates StoreConfig.
func (c *StoreConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("store: dsn required")
	}
	return nil
}

// RedisConfig holds the shared L2 cache connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Validate validates RedisConfig.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis: addr required")
	}
	return nil
}

// EmbeddingsConfig holds the embedding provider settings.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`

	// Dimension must equal the store's vector dimension; startup refuses
	// on mismatch.
	Dimension int `koanf:"dimension"`

	// CacheSize is the LRU capacity of the in-process embedding cache.
	CacheSize int `koanf:"cache_size"`
}

// Validate validates EmbeddingsConfig.
func (c *EmbeddingsConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("embeddings: model required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embeddings: dimension must be positive, got %d", c.Dimension)
	}
	return nil
}

// LLMConfig holds the chat model settings.
type LLMConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

// Validate validates LLMConfig.
func (c *LLMConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm: model required")
	}
	return nil
}

// RerankerConfig holds the cross-encoder sidecar settings.
type RerankerConfig struct {
	// ServiceURL is the base URL of the scoring service.
	ServiceURL string `koanf:"service_url"`

	// Model is the cross-encoder model identifier.
	Model string `koanf:"model"`

	// BatchSize overrides the device-derived batch size when positive.
	BatchSize int `koanf:"batch_size"`

	Timeout Duration `koanf:"timeout"`
}

// Validate validates RerankerConfig.
func (c *RerankerConfig) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("reranker: service_url required")
	}
	return nil
}

// EnhanceConfig holds query-enhancement settings.
type EnhanceConfig struct {
	// Deadline is shared by all strategies of one request.
	Deadline Duration `koanf:"deadline"`

	// FanOut bounds concurrent variant embeddings within a request.
	FanOut int `koanf:"fan_out"`
}

// Validate validates EnhanceConfig.
func (c *EnhanceConfig) Validate() error {
	if c.FanOut <= 0 {
		return fmt.Errorf("enhance: fan_out must be positive, got %d", c.FanOut)
	}
	return nil
}

// CacheConfig holds the retrieval cache settings.
type CacheConfig struct {
	L1Capacity int `koanf:"l1_capacity"`

	// TTL is the L2 time-to-live per mode.
	TTL map[string]Duration `koanf:"ttl"`
}

// Validate validates CacheConfig.
func (c *CacheConfig) Validate() error {
	if c.L1Capacity <= 0 {
		return fmt.Errorf("cache: l1_capacity must be positive, got %d", c.L1Capacity)
	}
	for mode := range c.TTL {
		if !IsMode(mode) {
			return fmt.Errorf("cache: unknown mode %q in ttl", mode)
		}
	}
	return nil
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	DefaultMode string `koanf:"default_mode"`

	// ConcurrencyLimit caps in-flight requests; sized to reranker memory
	// and accelerator throughput, not CPU count.
	ConcurrencyLimit  int      `koanf:"concurrency_limit"`
	AdmissionDeadline Duration `koanf:"admission_deadline"`

	// Deadline is the total per-request deadline per mode.
	Deadline map[string]Duration `koanf:"deadline"`

	// RetrieveK is the candidate count per mode.
	RetrieveK map[string]int `koanf:"retrieve_k"`

	// TopN is the final passage count after reranking.
	TopN int `koanf:"top_n"`

	// RRFC is the reciprocal-rank-fusion constant.
	RRFC float64 `koanf:"rrf_c"`

	// DefaultStatusFilter is the default status predicate; empty disables it.
	DefaultStatusFilter string `koanf:"default_status_filter"`
}

// Validate validates PipelineConfig.
func (c *PipelineConfig) Validate() error {
	if !IsMode(c.DefaultMode) {
		return fmt.Errorf("pipeline: unknown default_mode %q", c.DefaultMode)
	}
	if c.ConcurrencyLimit <= 0 {
		return fmt.Errorf("pipeline: concurrency_limit must be positive, got %d", c.ConcurrencyLimit)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("pipeline: top_n must be positive, got %d", c.TopN)
	}
	for mode := range c.Deadline {
		if !IsMode(mode) {
			return fmt.Errorf("pipeline: unknown mode %q in deadline", mode)
		}
	}
	for mode, k := range c.RetrieveK {
		if !IsMode(mode) {
			return fmt.Errorf("pipeline: unknown mode %q in retrieve_k", mode)
		}
		if k <= 0 {
			return fmt.Errorf("pipeline: retrieve_k[%s] must be positive, got %d", mode, k)
		}
	}
	return nil
}

// BreakerConfig holds the per-dependency circuit breaker settings.
type BreakerConfig struct {
	Window     Duration `koanf:"window"`
	Threshold  float64  `koanf:"threshold"`
	MinSamples int      `koanf:"min_samples"`
	Cooloff    Duration `koanf:"cooloff"`
}

// Validate validates BreakerConfig.
func (c *BreakerConfig) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("breaker: threshold must be in (0,1], got %v", c.Threshold)
	}
	return nil
}

// RegistryConfig holds model-registry settings.
type RegistryConfig struct {
	// FailureBackoff is how long a failed model load is cached before
	// another attempt is made.
	FailureBackoff Duration `koanf:"failure_backoff"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}
