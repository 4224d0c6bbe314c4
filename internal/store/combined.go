// Package store composes the lexical and vector indexes into the single
// model.ChunkStore the retrieval core depends on, per the external
// Chunk/Embedding Store contract (§6): full-text ranking, cosine-similarity
// ranking, fetch-by-id, and filter-predicate evaluation all live behind
// one seam so the orchestrator never knows they're two engines.
package store

import (
	"context"

	"github.com/dtrag/retrieval-core/internal/lexical"
	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/vector"
)

// Store implements model.ChunkStore by delegating lexical search and
// chunk/filter metadata to a lexical.Index, and vector search to a
// vector.Index. Chunk metadata, content-type, and date bookkeeping live
// solely in the lexical index's SQLite tables; the vector index only
// ever sees chunk ids and embeddings.
type Store struct {
	Lexical *lexical.Index
	Vector  *vector.Index
}

// New composes a lexical and vector index into a single ChunkStore.
func New(lex *lexical.Index, vec *vector.Index) *Store {
	return &Store{Lexical: lex, Vector: vec}
}

func (s *Store) SearchLexical(ctx context.Context, queryText string, eligible map[string]struct{}, limit int) ([]model.ScoredCandidate, error) {
	return s.Lexical.Search(ctx, queryText, eligible, limit)
}

func (s *Store) SearchVector(ctx context.Context, embedding model.Embedding, eligible map[string]struct{}, limit int) ([]model.ScoredCandidate, error) {
	return s.Vector.Search(ctx, embedding, eligible, limit)
}

func (s *Store) FetchChunks(ctx context.Context, ids []string) (map[string]*model.Chunk, error) {
	return s.Lexical.FetchChunks(ctx, ids)
}

func (s *Store) EligibleIDs(ctx context.Context, f model.CompiledFilter) (map[string]struct{}, error) {
	return s.Lexical.EligibleIDs(ctx, f)
}

// Close releases both underlying indexes.
func (s *Store) Close() error {
	lexErr := s.Lexical.Close()
	_ = s.Vector.Close()
	return lexErr
}

var _ model.ChunkStore = (*Store)(nil)
