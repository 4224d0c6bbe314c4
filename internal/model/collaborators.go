package model

import "context"

// ChunkStore is the external chunk/embedding store contract (§6). It
// answers the two ranking queries the orchestrator fans out to, plus
// batch lookups the orchestrator uses to enrich fused candidates before
// they become SearchHits.
type ChunkStore interface {
	// SearchLexical returns up to limit (chunk_id, lexical_score) pairs
	// for query, restricted to ids in eligible when eligible is non-nil.
	SearchLexical(ctx context.Context, query string, eligible map[string]struct{}, limit int) ([]ScoredCandidate, error)

	// SearchVector returns up to limit (chunk_id, dense_score) pairs for
	// the query embedding, restricted to ids in eligible when non-nil.
	SearchVector(ctx context.Context, queryEmbedding Embedding, eligible map[string]struct{}, limit int) ([]ScoredCandidate, error)

	// FetchChunks returns the chunk bodies for a batch of ids.
	FetchChunks(ctx context.Context, ids []string) (map[string]*Chunk, error)

	// EligibleIDs evaluates the compiled filter against chunk metadata and
	// returns the set of admissible chunk ids, or nil if the filter is
	// empty (meaning "no restriction").
	EligibleIDs(ctx context.Context, f CompiledFilter) (map[string]struct{}, error)
}

// CompiledFilter is the parameterized output of the Filter Compiler (C2):
// a set of bound values the store evaluates itself, never raw user text
// spliced into a query string.
type CompiledFilter struct {
	NodeSet       map[string]struct{} // nil => no taxonomy constraint
	ContentTypes  []string
	DateFrom      *int64 // unix seconds, nil => unbounded
	DateTo        *int64
	MinConfidence float64
}

// IsEmpty reports whether the compiled filter restricts anything.
func (c CompiledFilter) IsEmpty() bool {
	return c.NodeSet == nil && len(c.ContentTypes) == 0 && c.DateFrom == nil && c.DateTo == nil
}

// Embedder computes a dense vector for a query string.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

// TaxonomyReader is the read-only contract over the taxonomy DAG.
type TaxonomyReader interface {
	ListVersions(ctx context.Context) ([]string, error)
	Children(ctx context.Context, version, nodeID string) ([]string, error)
	Classify(ctx context.Context, docID, version string) ([]NodeConfidence, error)
}

// CrossEncoder is the optional neural reranker contract.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Available(ctx context.Context) bool
}

// MetricsSink is the optional metrics collaborator.
type MetricsSink interface {
	Record(ctx context.Context, m SearchMetrics)
}
