// Package model holds the data types shared across the retrieval core:
// chunks, embeddings, taxonomy nodes, filters, and the results/metrics
// a search produces. None of these types are mutated by the core after
// ingestion hands them in; ownership of their lifecycle lives upstream.
package model

import "time"

// Chunk is the unit of retrieval: a piece of a source document plus the
// taxonomy path it was classified under.
type Chunk struct {
	ID          string
	DocumentID  string
	Text        string
	Title       string
	SourceURL   string
	TaxonomyPath []string
	ContentType string
	ProcessedAt time.Time
	Metadata    map[string]string
}

// Embedding is a fixed-dimension dense vector for one chunk.
type Embedding []float32

// TaxonomyNode is one vertex of a per-version classification DAG. Edges
// run parent to child; a node with an empty ParentID is a root.
type TaxonomyNode struct {
	ID       string
	ParentID string
	Version  string
}

// NodeConfidence is a document's classification under one taxonomy node.
type NodeConfidence struct {
	NodeID     string
	Confidence float64
}

// Filter is the recognized set of request-time constraints, combined by
// AND. The zero value matches everything.
type Filter struct {
	TaxonomyNodeIDs []string
	TaxonomyVersion string
	ContentTypes    []string
	DateFrom        *time.Time
	DateTo          *time.Time
	MinConfidence   float64
}

// IsEmpty reports whether the filter constrains anything at all.
func (f Filter) IsEmpty() bool {
	return len(f.TaxonomyNodeIDs) == 0 && f.TaxonomyVersion == "" &&
		len(f.ContentTypes) == 0 && f.DateFrom == nil && f.DateTo == nil
}

// ScoredCandidate is a chunk id paired with one stage's raw score, used to
// move candidates between the lexical/dense retrievers and the fusion
// engine without carrying full chunk bodies through the hot path.
type ScoredCandidate struct {
	ChunkID string
	Score   float64
}

// FusedCandidate is a chunk id with its normalized per-side scores and the
// fused score the fusion engine produced for it.
type FusedCandidate struct {
	ChunkID    string
	Lexical    float64
	Dense      float64
	Fused      float64
	InBothSides bool
}

// SearchHit is the unit returned to callers of Search.
type SearchHit struct {
	ChunkID      string
	Text         string
	Title        string
	SourceURL    string
	TaxonomyPath []string
	Lexical      float64
	Dense        float64
	Fused        float64
	Rerank       float64
}

// SearchMetrics is the per-request observable the orchestrator produces
// alongside a result set.
type SearchMetrics struct {
	TotalLatencyMS   float64
	StageLatenciesMS map[string]float64
	CandidateCounts  map[string]int
	CacheHit         bool
	Degradations     []string
	WeightLexical    float64
	WeightDense      float64
	RerankPath       string // "cross-encoder", "heuristic", or "" if rerank did not run
	CorrelationID    string
}

// CacheEntry is a cached result set plus its access bookkeeping.
type CacheEntry struct {
	Key          string
	Hits         []SearchHit
	InsertedAt   time.Time
	LastAccessAt time.Time
}

// Options are the per-call tunables for Search, with documented defaults
// applied by the orchestrator when a field is left at its zero value.
type Options struct {
	NLex           int
	NVec           int
	EnableRerank   bool
	Normalization  string // "min-max" (default), "z-score", "reciprocal-rank"
	BypassCache    bool
	CorrelationID  string
}

// Defaults for Options fields, applied when the zero value is supplied.
const (
	DefaultNLex          = 50
	DefaultNVec          = 50
	DefaultNormalization = "min-max"
	DefaultKCap          = 200
	DefaultMinConfidence = 0.7
)

// WithDefaults returns a copy of o with zero-valued fields replaced by the
// package defaults above.
func (o Options) WithDefaults() Options {
	if o.NLex <= 0 {
		o.NLex = DefaultNLex
	}
	if o.NVec <= 0 {
		o.NVec = DefaultNVec
	}
	if o.Normalization == "" {
		o.Normalization = DefaultNormalization
	}
	return o
}
