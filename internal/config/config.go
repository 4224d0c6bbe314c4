// Package config loads the retrieval core's tunables: fan-out sizes,
// weighting/normalization policy, stage timeouts, cache sizing, and the
// taxonomy confidence floor. It follows the teacher's layered override
// pattern — built-in defaults, then an optional YAML file, then
// environment variables — trimmed to the knobs this core actually has.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable-once-loaded configuration for one
// orchestrator instance (§4.10's "State" note: runtime updates require
// constructing a new instance).
type Config struct {
	Search   SearchConfig   `yaml:"search" json:"search"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy" json:"taxonomy"`
}

// SearchConfig configures fan-out sizes, fusion weighting, normalization
// policy, and per-stage deadlines (§4.7, §4.10, §5).
type SearchConfig struct {
	NLex          int     `yaml:"n_lex" json:"n_lex"`
	NVec          int     `yaml:"n_vec" json:"n_vec"`
	KCap          int     `yaml:"k_cap" json:"k_cap"`
	Normalization string  `yaml:"normalization" json:"normalization"`
	WeightLexical float64 `yaml:"weight_lexical" json:"weight_lexical"`
	WeightDense   float64 `yaml:"weight_dense" json:"weight_dense"`
	WeightShift   float64 `yaml:"weight_shift" json:"weight_shift"`

	EmbeddingTimeout time.Duration `yaml:"embedding_timeout" json:"embedding_timeout"`
	LexicalTimeout   time.Duration `yaml:"lexical_timeout" json:"lexical_timeout"`
	DenseTimeout     time.Duration `yaml:"dense_timeout" json:"dense_timeout"`
	RerankTimeout    time.Duration `yaml:"rerank_timeout" json:"rerank_timeout"`
	TotalTimeout     time.Duration `yaml:"total_timeout" json:"total_timeout"`
}

// CacheConfig configures the Result Cache (C9).
type CacheConfig struct {
	Capacity int           `yaml:"capacity" json:"capacity"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// TaxonomyConfig configures the Filter Compiler's (C2) confidence floor.
type TaxonomyConfig struct {
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			NLex:             50,
			NVec:             50,
			KCap:             200,
			Normalization:    "min-max",
			WeightLexical:    0.5,
			WeightDense:      0.5,
			WeightShift:      0.2,
			EmbeddingTimeout: 300 * time.Millisecond,
			LexicalTimeout:   500 * time.Millisecond,
			DenseTimeout:     800 * time.Millisecond,
			RerankTimeout:    500 * time.Millisecond,
			TotalTimeout:     1500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Capacity: 1000,
			TTL:      3600 * time.Second,
		},
		Taxonomy: TaxonomyConfig{
			MinConfidence: 0.7,
		},
	}
}

// Load builds a Config starting from DefaultConfig, overlaying an
// optional YAML file at path, then environment variables prefixed
// DTRAG_. A non-existent path is not an error: it simply means "no file
// overlay", matching the teacher's layered-config lookup.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies DTRAG_* environment variable overrides, the
// highest-priority layer in the teacher's override chain.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DTRAG_N_LEX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.NLex = n
		}
	}
	if v := os.Getenv("DTRAG_N_VEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.NVec = n
		}
	}
	if v := os.Getenv("DTRAG_NORMALIZATION"); v != "" {
		c.Search.Normalization = v
	}
	if v := os.Getenv("DTRAG_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Taxonomy.MinConfidence = f
		}
	}
	if v := os.Getenv("DTRAG_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Capacity = n
		}
	}
	if v := os.Getenv("DTRAG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
}

// Validate rejects configurations the orchestrator could not run under,
// matching the invariants spec.md states as hard constraints.
func (c *Config) Validate() error {
	if c.Search.NLex <= 0 {
		return fmt.Errorf("search.n_lex must be positive, got %d", c.Search.NLex)
	}
	if c.Search.NVec <= 0 {
		return fmt.Errorf("search.n_vec must be positive, got %d", c.Search.NVec)
	}
	if c.Search.KCap <= 0 {
		return fmt.Errorf("search.k_cap must be positive, got %d", c.Search.KCap)
	}
	switch c.Search.Normalization {
	case "min-max", "z-score", "reciprocal-rank":
	default:
		return fmt.Errorf("search.normalization must be one of min-max, z-score, reciprocal-rank; got %q", c.Search.Normalization)
	}
	if c.Taxonomy.MinConfidence < 0.7 {
		return fmt.Errorf("taxonomy.min_confidence may never be configured below the 0.7 floor, got %v", c.Taxonomy.MinConfidence)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	return nil
}
