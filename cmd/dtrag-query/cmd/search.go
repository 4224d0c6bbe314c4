package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dtrag/retrieval-core/cmd/dtrag-query/fixture"
	"github.com/dtrag/retrieval-core/internal/cache"
	"github.com/dtrag/retrieval-core/internal/config"
	"github.com/dtrag/retrieval-core/internal/embed"
	"github.com/dtrag/retrieval-core/internal/filter"
	"github.com/dtrag/retrieval-core/internal/lexical"
	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/orchestrator"
	"github.com/dtrag/retrieval-core/internal/output"
	"github.com/dtrag/retrieval-core/internal/rerank"
	"github.com/dtrag/retrieval-core/internal/store"
	"github.com/dtrag/retrieval-core/internal/taxonomy"
	"github.com/dtrag/retrieval-core/internal/vector"
)

// searchOptions holds CLI flags for the search command.
type searchOptions struct {
	limit         int
	format        string // "text", "json"
	configPath    string
	dbPath        string // lexical index file; empty keeps it in-memory
	contentTypes  []string
	taxonomyNodes []string
	taxonomyVer   string
	minConfidence float64
	rerank        bool
	normalization string
	bypassCache   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search over the fixture document set",
		Long: `search seeds a small fixture corpus into a lexical and a vector
index, then runs it through the retrieval orchestrator: lexical and
dense candidate retrieval, fusion, optional reranking, and caching.

Examples:
  dtrag-query search "token refresh"
  dtrag-query search "design tokens" --taxonomy-version v1 --taxonomy-node engineering
  dtrag-query search "retention policy" --rerank --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "lexical index file path (default: in-memory)")
	cmd.Flags().StringSliceVar(&opts.contentTypes, "content-type", nil, "restrict to content types (repeatable)")
	cmd.Flags().StringSliceVar(&opts.taxonomyNodes, "taxonomy-node", nil, "restrict to taxonomy node ids (repeatable)")
	cmd.Flags().StringVar(&opts.taxonomyVer, "taxonomy-version", "", "taxonomy version the node ids belong to")
	cmd.Flags().Float64Var(&opts.minConfidence, "min-confidence", 0, "minimum classification confidence")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "enable reranking of fused candidates")
	cmd.Flags().StringVar(&opts.normalization, "normalization", "", "score normalization policy: min-max, z-score, reciprocal-rank")
	cmd.Flags().BoolVar(&opts.bypassCache, "bypass-cache", false, "skip the result cache")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lexIdx, err := lexical.New(opts.dbPath)
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	defer func() { _ = lexIdx.Close() }()

	vecIdx := vector.New(vector.Config{Dimensions: embed.StaticDimensions})
	defer func() { _ = vecIdx.Close() }()

	staticEmbedder := embed.NewStaticEmbedder()
	if err := seedFixtures(ctx, lexIdx, vecIdx, staticEmbedder); err != nil {
		return fmt.Errorf("seed fixture data: %w", err)
	}

	taxReader := fixture.NewTaxonomy()
	resolver := taxonomy.New(taxReader)
	compiler := filter.New(resolver, taxReader)

	chunkStore := store.New(lexIdx, vecIdx)
	embedder := embed.NewCachedEmbedder(staticEmbedder, 0)
	resultCache := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL)
	reranker := rerank.New(nil)

	orch := orchestrator.New(chunkStore, embedder, compiler, resultCache, reranker, nil, orchestrator.Config{
		KCap:             cfg.Search.KCap,
		EmbeddingTimeout: cfg.Search.EmbeddingTimeout,
		LexicalTimeout:   cfg.Search.LexicalTimeout,
		DenseTimeout:     cfg.Search.DenseTimeout,
		RerankTimeout:    cfg.Search.RerankTimeout,
		TotalTimeout:     cfg.Search.TotalTimeout,
		WeightLexical:    cfg.Search.WeightLexical,
		WeightDense:      cfg.Search.WeightDense,
		WeightShift:      cfg.Search.WeightShift,
	})

	f := model.Filter{
		ContentTypes:    opts.contentTypes,
		TaxonomyNodeIDs: opts.taxonomyNodes,
		TaxonomyVersion: opts.taxonomyVer,
		MinConfidence:   opts.minConfidence,
	}
	normalization := opts.normalization
	if normalization == "" {
		normalization = cfg.Search.Normalization
	}
	searchOpts := model.Options{
		NLex:          cfg.Search.NLex,
		NVec:          cfg.Search.NVec,
		EnableRerank:  opts.rerank,
		Normalization: normalization,
		BypassCache:   opts.bypassCache,
	}

	hits, metrics, err := orch.Search(ctx, query, opts.limit, f, searchOpts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		return formatJSON(cmd, hits, metrics)
	}
	return formatText(out, query, hits, metrics)
}

// seedFixtures loads the fixture corpus into both the lexical and vector
// index, standing in for a real ingestion pipeline (out of scope for
// the core).
func seedFixtures(ctx context.Context, lexIdx *lexical.Index, vecIdx *vector.Index, embedder model.Embedder) error {
	chunks := fixture.Chunks()
	if err := lexIdx.Upsert(ctx, chunks, fixture.Classifications()); err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	vectors := make([]model.Embedding, len(chunks))
	for i, c := range chunks {
		emb, err := embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		ids[i] = c.ID
		vectors[i] = emb
	}
	return vecIdx.Add(ids, vectors)
}

func formatText(out *output.Writer, query string, hits []model.SearchHit, metrics model.SearchMetrics) error {
	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("no results for %q", query))
		return nil
	}

	out.Statusf("", "%d results for %q (%.1fms, cache_hit=%t)", len(hits), query, metrics.TotalLatencyMS, metrics.CacheHit)
	out.Newline()

	for i, h := range hits {
		out.Statusf("", "%d. %s (fused: %.3f, lexical: %.3f, dense: %.3f)", i+1, h.Title, h.Fused, h.Lexical, h.Dense)
		out.Status("", "   "+h.SourceURL)
		out.Status("", "   "+truncateSnippet(h.Text, 160))
		if len(h.TaxonomyPath) > 0 {
			out.Status("", "   path: "+strings.Join(h.TaxonomyPath, " > "))
		}
		out.Newline()
	}

	if len(metrics.Degradations) > 0 {
		out.Warning("degraded stages: " + strings.Join(metrics.Degradations, ", "))
	}
	return nil
}

func formatJSON(cmd *cobra.Command, hits []model.SearchHit, metrics model.SearchMetrics) error {
	payload := struct {
		Hits    []model.SearchHit   `json:"hits"`
		Metrics model.SearchMetrics `json:"metrics"`
	}{Hits: hits, Metrics: metrics}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func truncateSnippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}
