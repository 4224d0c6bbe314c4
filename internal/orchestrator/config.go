package orchestrator

import (
	"time"

	"github.com/dtrag/retrieval-core/internal/fusion"
)

// Config holds the orchestrator's immutable, per-instance configuration
// (§4.10's "State" note: runtime updates require constructing a new
// instance). Timeouts default to the values documented in §5. The
// result cache itself is constructed and sized by the caller and
// injected via New — Config carries no cache knobs, since the
// orchestrator never owns the cache's lifecycle.
type Config struct {
	KCap int

	EmbeddingTimeout time.Duration
	LexicalTimeout   time.Duration
	DenseTimeout     time.Duration
	RerankTimeout    time.Duration
	TotalTimeout     time.Duration

	// WeightLexical/WeightDense/WeightShift configure the Fusion
	// Engine's (C7) adaptive weighting base split and shift (§4.7 step
	// 3). Zero values fall back to fusion.DefaultConfig().
	WeightLexical float64
	WeightDense   float64
	WeightShift   float64
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	fusionDefaults := fusion.DefaultConfig()
	return Config{
		KCap:             200,
		EmbeddingTimeout: 300 * time.Millisecond,
		LexicalTimeout:   500 * time.Millisecond,
		DenseTimeout:     800 * time.Millisecond,
		RerankTimeout:    500 * time.Millisecond,
		TotalTimeout:     1500 * time.Millisecond,
		WeightLexical:    fusionDefaults.BaseLexical,
		WeightDense:      fusionDefaults.BaseDense,
		WeightShift:      fusionDefaults.Shift,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.KCap <= 0 {
		c.KCap = d.KCap
	}
	if c.EmbeddingTimeout <= 0 {
		c.EmbeddingTimeout = d.EmbeddingTimeout
	}
	if c.LexicalTimeout <= 0 {
		c.LexicalTimeout = d.LexicalTimeout
	}
	if c.DenseTimeout <= 0 {
		c.DenseTimeout = d.DenseTimeout
	}
	if c.RerankTimeout <= 0 {
		c.RerankTimeout = d.RerankTimeout
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = d.TotalTimeout
	}
	if c.WeightLexical <= 0 && c.WeightDense <= 0 {
		c.WeightLexical = d.WeightLexical
		c.WeightDense = d.WeightDense
	}
	if c.WeightShift <= 0 {
		c.WeightShift = d.WeightShift
	}
	return c
}

// fusionConfig projects the weighting fields into a fusion.Config for
// the Fusion Engine.
func (c Config) fusionConfig() fusion.Config {
	return fusion.Config{BaseLexical: c.WeightLexical, BaseDense: c.WeightDense, Shift: c.WeightShift}
}
