// Package lexical implements the Lexical Retriever (C3) and the chunk
// metadata side of the external Chunk/Embedding Store contract (§6), on
// top of SQLite FTS5 via the pure-Go modernc.org/sqlite driver.
//
// The WAL-mode connection setup, single-writer pool, and corruption
// auto-recovery here are adapted directly from the teacher's SQLite
// FTS5 BM25 index; this package drops the teacher's code-aware
// camelCase/snake_case tokenizer, since spec.md explicitly delegates
// tokenization policy to the underlying store (a Non-goal) and this
// corpus is natural-language chunk text, not source code.
package lexical

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dtrag/retrieval-core/internal/logging"
	"github.com/dtrag/retrieval-core/internal/model"

	_ "modernc.org/sqlite"
)

// Index is a SQLite FTS5-backed lexical retriever plus chunk metadata
// table, implementing the chunk-facing half of model.ChunkStore.
type Index struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// New opens (or creates) a SQLite FTS5 index at path. An empty path
// opens an in-memory index, for tests and fixtures.
func New(path string) (*Index, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create index directory: %w", err)
			}
		}
		if err := validateIntegrity(path); err != nil {
			logging.ForStage(slog.Default(), logging.StageLexical).Warn("lexical index corrupted, recreating",
				slog.String("path", path), slog.String("error", err.Error()))
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	idx := &Index{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return idx, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

func (idx *Index) initSchema() error {
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS chunk_meta (
		chunk_id      TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL,
		title         TEXT,
		source_url    TEXT,
		content_type  TEXT,
		processed_at  INTEGER,
		taxonomy_path TEXT,
		metadata_json TEXT,
		body          TEXT
	);

	CREATE TABLE IF NOT EXISTS doc_classification (
		chunk_id      TEXT,
		node_id       TEXT,
		confidence    REAL,
		PRIMARY KEY (chunk_id, node_id)
	);
	`
	_, err := idx.db.Exec(schema)
	return err
}

// Upsert indexes chunks for both lexical search and metadata lookups,
// plus their taxonomy classifications. This is a fixture/test-setup
// surface, not part of the core's public retrieval contract — ingestion
// owns the real write path and is explicitly out of scope (spec.md §1).
func (idx *Index) Upsert(ctx context.Context, chunks []*model.Chunk, classifications map[string][]model.NodeConfidence) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`, c.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fts_chunks(chunk_id, content) VALUES (?, ?)`, c.ID, c.Text); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_meta(chunk_id, document_id, title, source_url, content_type, processed_at, taxonomy_path, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				document_id=excluded.document_id, title=excluded.title, source_url=excluded.source_url,
				content_type=excluded.content_type, processed_at=excluded.processed_at,
				taxonomy_path=excluded.taxonomy_path, body=excluded.body
		`, c.ID, c.DocumentID, c.Title, c.SourceURL, c.ContentType, c.ProcessedAt.Unix(),
			strings.Join(c.TaxonomyPath, "/"), c.Text); err != nil {
			return err
		}
		for _, nc := range classifications[c.DocumentID] {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO doc_classification(chunk_id, node_id, confidence) VALUES (?, ?, ?)
				ON CONFLICT(chunk_id, node_id) DO UPDATE SET confidence=excluded.confidence
			`, c.ID, nc.NodeID, nc.Confidence); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Search implements the Lexical Retriever (C3): up to limit (chunk_id,
// lexical_score) pairs sorted by descending score, restricted to
// eligible when non-nil. Empty query returns an empty result.
func (idx *Index) Search(ctx context.Context, queryText string, eligible map[string]struct{}, limit int) ([]model.ScoredCandidate, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}

	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return []model.ScoredCandidate{}, nil
	}

	matchQuery := toFTS5MatchQuery(trimmed)
	rows, err := idx.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(fts_chunks) AS score
		FROM fts_chunks
		WHERE content MATCH ?
		ORDER BY score
		LIMIT ?
	`, matchQuery, queryLimit(limit, eligible))
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []model.ScoredCandidate{}, nil
		}
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []model.ScoredCandidate
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, err
		}
		if eligible != nil {
			if _, ok := eligible[chunkID]; !ok {
				continue
			}
		}
		// FTS5's bm25() returns negative values where lower is a better
		// match; negate so higher is better, matching ts_rank_cd's sign.
		out = append(out, model.ScoredCandidate{ChunkID: chunkID, Score: -score})
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// queryLimit over-fetches when an eligibility set will filter rows back
// out in Go, so a tight LIMIT doesn't starve the post-filter.
func queryLimit(limit int, eligible map[string]struct{}) int {
	if eligible == nil {
		return limit
	}
	overfetch := limit * 4
	if overfetch < limit {
		return limit
	}
	return overfetch
}

// toFTS5MatchQuery quotes each term so FTS5 treats the query as a
// literal phrase match over bareword operators, rather than parsing
// user input as FTS5 query syntax.
func toFTS5MatchQuery(q string) string {
	fields := strings.Fields(q)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		escaped := strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+escaped+`"`)
	}
	return strings.Join(quoted, " ")
}

// FetchChunks returns chunk bodies for a batch of ids.
func (idx *Index) FetchChunks(ctx context.Context, ids []string) (map[string]*model.Chunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(ids) == 0 {
		return map[string]*model.Chunk{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, document_id, title, source_url, content_type, processed_at, taxonomy_path, body
		FROM chunk_meta WHERE chunk_id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*model.Chunk, len(ids))
	for rows.Next() {
		var c model.Chunk
		var taxPath string
		var processedAt int64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Title, &c.SourceURL, &c.ContentType, &processedAt, &taxPath, &c.Text); err != nil {
			return nil, err
		}
		c.ProcessedAt = time.Unix(processedAt, 0).UTC()
		if taxPath != "" {
			c.TaxonomyPath = strings.Split(taxPath, "/")
		}
		out[c.ID] = &c
	}
	return out, rows.Err()
}

// EligibleIDs implements the predicate half of the Chunk/Embedding Store
// contract (§6d): it evaluates a CompiledFilter purely with bound
// parameters, returning nil when the filter constrains nothing.
func (idx *Index) EligibleIDs(ctx context.Context, f model.CompiledFilter) (map[string]struct{}, error) {
	if f.IsEmpty() {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}

	clauses := []string{}
	args := []any{}

	if len(f.ContentTypes) > 0 {
		placeholders := make([]string, len(f.ContentTypes))
		for i, ct := range f.ContentTypes {
			placeholders[i] = "?"
			args = append(args, ct)
		}
		clauses = append(clauses, "content_type IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "processed_at >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		clauses = append(clauses, "processed_at <= ?")
		args = append(args, *f.DateTo)
	}

	query := "SELECT chunk_id FROM chunk_meta"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eligible ids: %w", err)
	}
	defer rows.Close()

	eligible := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		eligible[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if f.NodeSet == nil {
		return eligible, nil
	}
	return idx.intersectTaxonomyScope(ctx, eligible, f.NodeSet, f.MinConfidence)
}

// intersectTaxonomyScope narrows eligible to chunks whose document is
// classified under a node in nodeSet with confidence >= minConfidence.
func (idx *Index) intersectTaxonomyScope(ctx context.Context, eligible map[string]struct{}, nodeSet map[string]struct{}, minConfidence float64) (map[string]struct{}, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT chunk_id, node_id, confidence FROM doc_classification WHERE confidence >= ?`, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("taxonomy scope query: %w", err)
	}
	defer rows.Close()

	inScope := make(map[string]struct{})
	for rows.Next() {
		var chunkID, nodeID string
		var confidence float64
		if err := rows.Scan(&chunkID, &nodeID, &confidence); err != nil {
			return nil, err
		}
		if _, ok := nodeSet[nodeID]; ok {
			inScope[chunkID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]struct{})
	for id := range eligible {
		if _, ok := inScope[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// Close closes the underlying database, checkpointing the WAL first.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return idx.db.Close()
}
