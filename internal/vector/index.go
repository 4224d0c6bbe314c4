// Package vector implements the Vector Retriever (C4): approximate
// cosine-similarity search over chunk embeddings backed by coder/hnsw,
// a pure-Go HNSW graph. The graph wiring, lazy deletion, and vector
// normalization here are adapted directly from the teacher's HNSW
// vector store.
package vector

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/dtrag/retrieval-core/internal/model"
)

// Config controls graph construction. M and EfSearch follow coder/hnsw's
// own recommended defaults when left zero.
type Config struct {
	Dimensions int
	M          int
	EfSearch   int
}

// Index is a coder/hnsw-backed approximate nearest-neighbor index over
// chunk embeddings, implementing the vector-search half of model.ChunkStore.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// New constructs an empty vector index for the given embedding dimensionality.
func New(cfg Config) *Index {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// ErrDimensionMismatch is returned when a vector's length doesn't match
// the index's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected, Got int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Add inserts or replaces embeddings for a batch of chunk ids. This is a
// fixture/test-setup surface; ingestion owns the real write path and is
// out of scope for the retrieval core.
func (idx *Index) Add(ids []string, vectors []model.Embedding) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != idx.config.Dimensions {
			return ErrDimensionMismatch{Expected: idx.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := idx.idMap[id]; exists {
			// Lazy deletion: orphan the old key rather than mutating the
			// graph, since coder/hnsw mishandles removing its last node.
			delete(idx.keyMap, existingKey)
			delete(idx.idMap, id)
		}

		key := idx.nextKey
		idx.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.idMap[id] = key
		idx.keyMap[key] = id
	}
	return nil
}

// Search implements the Vector Retriever (C4): up to limit (chunk_id,
// cosine_score) pairs sorted by descending score, restricted to
// eligible when non-nil.
func (idx *Index) Search(ctx context.Context, embedding model.Embedding, eligible map[string]struct{}, limit int) ([]model.ScoredCandidate, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(embedding) != idx.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: idx.config.Dimensions, Got: len(embedding)}
	}
	if idx.graph.Len() == 0 {
		return []model.ScoredCandidate{}, nil
	}

	query := make([]float32, len(embedding))
	copy(query, embedding)
	normalizeInPlace(query)

	fetch := limit
	if eligible != nil {
		fetch = limit * 4
	}
	if fetch > idx.graph.Len() {
		fetch = idx.graph.Len()
	}

	nodes := idx.graph.Search(query, fetch)

	out := make([]model.ScoredCandidate, 0, limit)
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			continue
		}
		if eligible != nil {
			if _, ok := eligible[id]; !ok {
				continue
			}
		}
		distance := idx.graph.Distance(query, node.Value)
		out = append(out, model.ScoredCandidate{ChunkID: id, Score: cosineScore(distance)})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete removes embeddings for the given chunk ids, via lazy deletion.
func (idx *Index) Delete(ids []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		if key, ok := idx.idMap[id]; ok {
			delete(idx.keyMap, key)
			delete(idx.idMap, id)
		}
	}
}

// Len returns the number of live (non-orphaned) embeddings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

// Close releases the index. coder/hnsw's Graph needs no explicit teardown.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineScore maps coder/hnsw's cosine distance (0 identical, 2 opposite)
// to a similarity score in [0, 1].
func cosineScore(distance float32) float64 {
	return 1.0 - float64(distance)/2.0
}
