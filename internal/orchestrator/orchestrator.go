// Package orchestrator implements the Retrieval Orchestrator (C10): the
// single public entry point that wires the query analyzer, filter
// compiler, lexical/dense retrievers, fusion engine, reranker, and
// result cache into one request protocol. The per-stage deadline and
// cancellation discipline follows the teacher's search engine's
// concurrent fan-out; the join/degrade protocol itself is this
// system's own (§4.10).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtrag/retrieval-core/internal/cache"
	dtragerrors "github.com/dtrag/retrieval-core/internal/errors"
	"github.com/dtrag/retrieval-core/internal/filter"
	"github.com/dtrag/retrieval-core/internal/fusion"
	"github.com/dtrag/retrieval-core/internal/logging"
	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/normalize"
	"github.com/dtrag/retrieval-core/internal/query"
	"github.com/dtrag/retrieval-core/internal/rerank"
)

// Orchestrator is the Retrieval Orchestrator (C10). It is stateless
// except for its injected collaborators, and safe for concurrent use by
// multiple callers.
type Orchestrator struct {
	store    model.ChunkStore
	embedder model.Embedder
	compiler *filter.Compiler
	cache    *cache.Cache
	reranker *rerank.Reranker
	metrics  model.MetricsSink
	config   Config
}

// New wires an Orchestrator's collaborators. cache, reranker, and
// metrics may be nil: a nil cache disables caching, a nil reranker
// forces the heuristic fallback path whenever rerank is requested, and
// a nil metrics sink simply drops metrics.
func New(store model.ChunkStore, embedder model.Embedder, compiler *filter.Compiler, c *cache.Cache, reranker *rerank.Reranker, metrics model.MetricsSink, cfg Config) *Orchestrator {
	if reranker == nil {
		reranker = rerank.New(nil)
	}
	return &Orchestrator{
		store:    store,
		embedder: embedder,
		compiler: compiler,
		cache:    c,
		reranker: reranker,
		metrics:  metrics,
		config:   cfg.withDefaults(),
	}
}

type stageResult struct {
	candidates []model.ScoredCandidate
	err        error
	latency    time.Duration
}

// Search is the core's single public operation (§4.10).
func (o *Orchestrator) Search(ctx context.Context, queryText string, k int, f model.Filter, opts model.Options) ([]model.SearchHit, model.SearchMetrics, error) {
	start := time.Now()
	metrics := model.SearchMetrics{
		StageLatenciesMS: make(map[string]float64),
		CandidateCounts:  make(map[string]int),
		CorrelationID:    opts.CorrelationID,
	}

	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return nil, metrics, dtragerrors.New(dtragerrors.CodeInvalidQuery, "query is empty", nil)
	}
	if k <= 0 || k > o.config.KCap {
		return nil, metrics, dtragerrors.New(dtragerrors.CodeInvalidQuery,
			fmt.Sprintf("k must be in (0, %d], got %d", o.config.KCap, k), nil)
	}

	opts = opts.WithDefaults()
	ctx, cancel := context.WithTimeout(ctx, o.config.TotalTimeout)
	defer cancel()

	compiled, err := o.compiler.Compile(ctx, f)
	if err != nil {
		return nil, metrics, err
	}

	cacheKey, filterFingerprint := cache.CanonicalKey(trimmed, f, opts)
	if !opts.BypassCache {
		if hits, ok := o.cache.Get(cacheKey); ok {
			metrics.CacheHit = true
			metrics.TotalLatencyMS = elapsedMS(start)
			return truncate(hits, k), metrics, nil
		}
	}

	eligible, err := o.store.EligibleIDs(ctx, compiled)
	if err != nil {
		return nil, metrics, dtragerrors.Wrap(dtragerrors.CodeInvalidFilter, err)
	}

	lexResult, denseResult := o.retrieveConcurrently(ctx, trimmed, eligible, opts)
	metrics.StageLatenciesMS["lexical"] = lexResult.latency.Seconds() * 1000
	metrics.StageLatenciesMS["dense"] = denseResult.latency.Seconds() * 1000

	var lexCandidates, denseCandidates []model.ScoredCandidate
	if lexResult.err != nil {
		metrics.Degradations = append(metrics.Degradations, "lexical")
		logging.ForStage(slog.Default(), logging.StageLexical).Warn("lexical retrieval degraded",
			slog.String("correlation_id", opts.CorrelationID), slog.String("error", lexResult.err.Error()))
	} else {
		lexCandidates = lexResult.candidates
		metrics.CandidateCounts["lexical"] = len(lexCandidates)
	}
	if denseResult.err != nil {
		metrics.Degradations = append(metrics.Degradations, "dense")
		logging.ForStage(slog.Default(), logging.StageDense).Warn("dense retrieval degraded",
			slog.String("correlation_id", opts.CorrelationID), slog.String("error", denseResult.err.Error()))
	} else {
		denseCandidates = denseResult.candidates
		metrics.CandidateCounts["dense"] = len(denseCandidates)
	}

	if lexResult.err != nil && denseResult.err != nil {
		metrics.TotalLatencyMS = elapsedMS(start)
		return []model.SearchHit{}, metrics, dtragerrors.New(dtragerrors.CodeAllRetrievalFailed,
			"both lexical and dense retrieval failed", nil)
	}

	features := query.Analyze(trimmed)
	nFuse := opts.NLex
	if opts.NVec > nFuse {
		nFuse = opts.NVec
	}
	fused, weights := fusion.Fuse(lexCandidates, denseCandidates, features, normalize.Policy(opts.Normalization), nFuse, o.config.fusionConfig())
	metrics.WeightLexical = weights.Lexical
	metrics.WeightDense = weights.Dense
	metrics.CandidateCounts["fused"] = len(fused)

	hits, rerankPath, err := o.resolveAndMaybeRerank(ctx, trimmed, fused, k, opts)
	if err != nil {
		return nil, metrics, err
	}
	metrics.RerankPath = rerankPath

	hits = truncate(hits, k)
	metrics.TotalLatencyMS = elapsedMS(start)

	if !opts.BypassCache && len(hits) > 0 {
		o.cache.Put(cacheKey, filterFingerprint, hits)
	}

	if o.metrics != nil {
		o.metrics.Record(ctx, metrics)
	}

	return hits, metrics, nil
}

// retrieveConcurrently runs the lexical and embedding+dense sub-tasks
// per §4.10 step 3: lexical starts immediately, dense waits on the
// embedding to resolve. Each stage carries its own deadline, so a
// slow/failed stage never blocks or poisons the other — this is a
// plain errgroup.Group rather than errgroup.WithContext, since a
// failure in one stage must not cancel its sibling (that would turn a
// soft degradation into a hard one).
func (o *Orchestrator) retrieveConcurrently(ctx context.Context, queryText string, eligible map[string]struct{}, opts model.Options) (lexical, dense stageResult) {
	var g errgroup.Group

	g.Go(func() error {
		started := time.Now()
		lexCtx, cancel := context.WithTimeout(ctx, o.config.LexicalTimeout)
		defer cancel()
		cands, err := o.store.SearchLexical(lexCtx, queryText, eligible, opts.NLex)
		lexical = stageResult{candidates: cands, err: err, latency: time.Since(started)}
		return nil
	})

	g.Go(func() error {
		started := time.Now()
		embCtx, embCancel := context.WithTimeout(ctx, o.config.EmbeddingTimeout)
		embedding, err := o.embedder.Embed(embCtx, queryText)
		embCancel()
		if err != nil {
			dense = stageResult{err: err, latency: time.Since(started)}
			return nil
		}
		denseCtx, cancel := context.WithTimeout(ctx, o.config.DenseTimeout)
		defer cancel()
		cands, err := o.store.SearchVector(denseCtx, embedding, eligible, opts.NVec)
		dense = stageResult{candidates: cands, err: err, latency: time.Since(started)}
		return nil
	})

	_ = g.Wait()
	return lexical, dense
}

// resolveAndMaybeRerank fetches chunk bodies for the candidates that
// might surface in the response, runs the reranker when requested
// (§4.10 step 6), and converts the result to SearchHits.
func (o *Orchestrator) resolveAndMaybeRerank(ctx context.Context, queryText string, fused []model.FusedCandidate, k int, opts model.Options) ([]model.SearchHit, string, error) {
	if len(fused) == 0 {
		return []model.SearchHit{}, "", nil
	}

	fetchCount := len(fused)
	if opts.EnableRerank {
		want := 2 * k
		if want < fetchCount {
			fetchCount = want
		}
	} else if k < fetchCount {
		fetchCount = k
	}
	candidates := fused[:fetchCount]

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}
	chunks, err := o.store.FetchChunks(ctx, ids)
	if err != nil {
		return nil, "", dtragerrors.Wrap(dtragerrors.CodeAllRetrievalFailed, err)
	}

	texts := make([]rerank.CandidateText, 0, len(candidates))
	for _, c := range candidates {
		chunk, ok := chunks[c.ChunkID]
		if !ok {
			continue
		}
		texts = append(texts, rerank.CandidateText{
			FusedCandidate: c,
			Text:           chunk.Text,
			Title:          chunk.Title,
			SourceURL:      chunk.SourceURL,
			TaxonomyPath:   chunk.TaxonomyPath,
		})
	}

	var ranked []rerank.CandidateText
	var rerankPath string
	if opts.EnableRerank {
		rerankCtx, cancel := context.WithTimeout(ctx, o.config.RerankTimeout)
		defer cancel()
		reranked, path := o.reranker.Rerank(rerankCtx, queryText, texts)
		rerankPath = path
		ranked = zipCandidateText(reranked, texts)
	} else {
		ranked = texts
	}

	out := make([]model.SearchHit, len(ranked))
	for i, c := range ranked {
		out[i] = model.SearchHit{
			ChunkID:      c.ChunkID,
			Text:         c.Text,
			Title:        c.Title,
			SourceURL:    c.SourceURL,
			TaxonomyPath: c.TaxonomyPath,
			Lexical:      c.Lexical,
			Dense:        c.Dense,
			Fused:        c.Fused,
			Rerank:       c.Rerank,
		}
	}
	return out, rerankPath, nil
}

// zipCandidateText re-attaches text/metadata to the reranker's output,
// which carries only the embedded FusedCandidate fields.
func zipCandidateText(reranked []model.FusedCandidate, original []rerank.CandidateText) []rerank.CandidateText {
	byID := make(map[string]rerank.CandidateText, len(original))
	for _, c := range original {
		byID[c.ChunkID] = c
	}
	out := make([]rerank.CandidateText, 0, len(reranked))
	for _, fc := range reranked {
		c, ok := byID[fc.ChunkID]
		if !ok {
			continue
		}
		c.FusedCandidate = fc
		out = append(out, c)
	}
	return out
}

func truncate(hits []model.SearchHit, k int) []model.SearchHit {
	if len(hits) <= k {
		return hits
	}
	return hits[:k]
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// InvalidateCache evicts every cached entry tagged with filterFingerprint
// (the administrative surface's invalidate_cache, §6).
func (o *Orchestrator) InvalidateCache(filterFingerprint string) {
	o.cache.InvalidatePrefix(filterFingerprint)
}

// Stats is the administrative surface's get_stats snapshot (§6).
type Stats struct {
	CacheSize int
}

// GetStats returns a snapshot of orchestrator-owned runtime state.
func (o *Orchestrator) GetStats() Stats {
	return Stats{CacheSize: o.cache.Len()}
}
