// Package config provides configuration loading for bidrag.
//
// Configuration precedence (highest to lowest): BIDRAG_* environment
// variables, YAML config file, hardcoded defaults. Every section except
// telemetry and registry has a Validate method; Load fails on the first
// invalid section.
package config

import (
	"time"

	"github.com/lexviet/bidrag/internal/logging"
)

// Config holds the complete bidrag configuration.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Store      StoreConfig      `koanf:"store"`
	Redis      RedisConfig      `koanf:"redis"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Reranker   RerankerConfig   `koanf:"reranker"`
	Enhance    EnhanceConfig    `koanf:"enhance"`
	Cache      CacheConfig      `koanf:"cache"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Registry   RegistryConfig   `koanf:"registry"`
}

// Validate validates all sections.
func (c *Config) Validate() error {
	validators := []func() error{
		c.Logging.Validate,
		c.Store.Validate,
		c.Redis.Validate,
		c.Embeddings.Validate,
		c.LLM.Validate,
		c.Reranker.Validate,
		c.Enhance.Validate,
		c.Cache.Validate,
		c.Pipeline.Validate,
		c.Breaker.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the built-in defaults, matching the mode table:
//
//	mode      enhance             fusion  rerank  k   deadline
//	fast      none                no      no      5   1s
//	balanced  multi-query+stepback no     yes     10  3s
//	quality   all four            RRF     yes     20  5s
//	adaptive  dynamic             no      k>=5    3-10 3s
func Default() *Config {
	return &Config{
		Logging: logging.NewDefaultConfig(),
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "bidrag",
		},
		Store: StoreConfig{
			Table: "passages",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			CacheSize: 1000,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
		},
		Reranker: RerankerConfig{
			ServiceURL: "http://localhost:8000",
			Model:      "namdp-ptit/ViRanker",
			Timeout:    Duration(10 * time.Second),
		},
		Enhance: EnhanceConfig{
			Deadline: Duration(2 * time.Second),
			FanOut:   4,
		},
		Cache: CacheConfig{
			L1Capacity: 100,
			TTL: map[string]Duration{
				"fast":     Duration(10 * time.Minute),
				"balanced": Duration(10 * time.Minute),
				"quality":  Duration(30 * time.Minute),
				"adaptive": Duration(10 * time.Minute),
			},
		},
		Pipeline: PipelineConfig{
			DefaultMode:       "balanced",
			ConcurrencyLimit:  10,
			AdmissionDeadline: Duration(500 * time.Millisecond),
			Deadline: map[string]Duration{
				"fast":     Duration(1 * time.Second),
				"balanced": Duration(3 * time.Second),
				"quality":  Duration(5 * time.Second),
				"adaptive": Duration(3 * time.Second),
			},
			RetrieveK: map[string]int{
				"fast":     5,
				"balanced": 10,
				"quality":  20,
				"adaptive": 10,
			},
			TopN:                5,
			RRFC:                60,
			DefaultStatusFilter: "active",
		},
		Breaker: BreakerConfig{
			Window:     Duration(30 * time.Second),
			Threshold:  0.5,
			MinSamples: 5,
			Cooloff:    Duration(15 * time.Second),
		},
		Registry: RegistryConfig{
			FailureBackoff: Duration(30 * time.Second),
		},
	}
}

// ModeDeadline returns the total deadline for a mode, falling back to the
// balanced deadline when the mode has no entry.
func (c *Config) ModeDeadline(mode string) time.Duration {
	if d, ok := c.Pipeline.Deadline[mode]; ok {
		return d.Std()
	}
	return c.Pipeline.Deadline["balanced"].Std()
}

// ModeRetrieveK returns the candidate count for a mode.
func (c *Config) ModeRetrieveK(mode string) int {
	if k, ok := c.Pipeline.RetrieveK[mode]; ok {
		return k
	}
	return 10
}

// ModeTTL returns the cache TTL for a mode.
func (c *Config) ModeTTL(mode string) time.Duration {
	if ttl, ok := c.Cache.TTL[mode]; ok {
		return ttl.Std()
	}
	return 10 * time.Minute
}

// DefaultFilterStatus returns the configured default status predicate value,
// or "" when disabled.
func (c *Config) DefaultFilterStatus() string {
	return c.Pipeline.DefaultStatusFilter
}
