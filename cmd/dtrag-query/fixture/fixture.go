// Package fixture supplies small, deterministic in-memory sample data —
// a handful of chunks, their classifications, and the taxonomy DAG they
// hang off of — for the dtrag-query demo CLI to search over. It is a
// stand-in for the ingestion pipeline and taxonomy store, both out of
// scope for the retrieval core itself.
package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/dtrag/retrieval-core/internal/model"
)

// Version is the single taxonomy version the fixture data classifies
// against.
const Version = "v1"

// Taxonomy is an in-memory model.TaxonomyReader over a small, fixed DAG:
//
//	root
//	├── engineering
//	│   ├── backend
//	│   └── frontend
//	├── product
//	└── legal
type Taxonomy struct {
	children        map[string][]string
	classifications map[string][]model.NodeConfidence
}

// NewTaxonomy constructs the fixture taxonomy and document classifications.
func NewTaxonomy() *Taxonomy {
	return &Taxonomy{
		children: map[string][]string{
			"root":        {"engineering", "product", "legal"},
			"engineering": {"backend", "frontend"},
			"backend":     {},
			"frontend":    {},
			"product":     {},
			"legal":       {},
		},
		classifications: map[string][]model.NodeConfidence{
			"doc-auth":      {{NodeID: "backend", Confidence: 0.95}, {NodeID: "engineering", Confidence: 0.9}},
			"doc-ui":        {{NodeID: "frontend", Confidence: 0.9}, {NodeID: "engineering", Confidence: 0.85}},
			"doc-roadmap":   {{NodeID: "product", Confidence: 0.92}},
			"doc-privacy":   {{NodeID: "legal", Confidence: 0.97}},
			"doc-onboarding": {{NodeID: "product", Confidence: 0.8}, {NodeID: "engineering", Confidence: 0.7}},
		},
	}
}

func (t *Taxonomy) ListVersions(ctx context.Context) ([]string, error) {
	return []string{Version}, nil
}

func (t *Taxonomy) Children(ctx context.Context, version, nodeID string) ([]string, error) {
	if version != Version {
		return nil, fmt.Errorf("unknown taxonomy version: %s", version)
	}
	return t.children[nodeID], nil
}

func (t *Taxonomy) Classify(ctx context.Context, docID, version string) ([]model.NodeConfidence, error) {
	if version != Version {
		return nil, fmt.Errorf("unknown taxonomy version: %s", version)
	}
	return t.classifications[docID], nil
}

var _ model.TaxonomyReader = (*Taxonomy)(nil)

// Chunks returns a small set of sample chunks spanning engineering,
// product, and legal documents, for Upsert-ing into a lexical index and
// embedding into a vector index.
func Chunks() []*model.Chunk {
	processed := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	return []*model.Chunk{
		{
			ID: "auth-1", DocumentID: "doc-auth",
			Title: "Authentication middleware", SourceURL: "internal://docs/auth.md",
			Text:         "The authentication middleware validates a bearer token on every request and attaches the resolved principal to the request context before handlers run.",
			TaxonomyPath: []string{"root", "engineering", "backend"},
			ContentType:  "markdown", ProcessedAt: processed,
		},
		{
			ID: "auth-2", DocumentID: "doc-auth",
			Title: "Token refresh flow", SourceURL: "internal://docs/auth.md",
			Text:         "Refresh tokens rotate on every use and are revoked if presented twice, closing the replay window for a stolen refresh token.",
			TaxonomyPath: []string{"root", "engineering", "backend"},
			ContentType:  "markdown", ProcessedAt: processed,
		},
		{
			ID: "ui-1", DocumentID: "doc-ui",
			Title: "Component library conventions", SourceURL: "internal://docs/ui.md",
			Text:         "Every component accepts a variant prop and renders from the shared design tokens rather than hard-coded colors or spacing.",
			TaxonomyPath: []string{"root", "engineering", "frontend"},
			ContentType:  "markdown", ProcessedAt: processed,
		},
		{
			ID: "roadmap-1", DocumentID: "doc-roadmap",
			Title: "Q3 roadmap", SourceURL: "internal://docs/roadmap.html",
			Text:         "The third quarter roadmap prioritizes search relevance improvements and defers the notifications rework to the following quarter.",
			TaxonomyPath: []string{"root", "product"},
			ContentType:  "html", ProcessedAt: processed,
		},
		{
			ID: "privacy-1", DocumentID: "doc-privacy",
			Title: "Data retention policy", SourceURL: "internal://docs/privacy.pdf",
			Text:         "User-uploaded documents are retained for ninety days after account deletion, after which they are permanently purged from all backups.",
			TaxonomyPath: []string{"root", "legal"},
			ContentType:  "pdf", ProcessedAt: processed,
		},
		{
			ID: "onboarding-1", DocumentID: "doc-onboarding",
			Title: "New hire onboarding checklist", SourceURL: "internal://docs/onboarding.txt",
			Text:         "New engineers get repository access, a staging environment account, and a pairing session with their onboarding buddy in the first week.",
			TaxonomyPath: []string{"root", "product"},
			ContentType:  "plain", ProcessedAt: processed,
		},
	}
}

// Classifications returns the document-id-keyed classification map
// Chunks' documents carry, for seeding a lexical index's
// doc_classification table.
func Classifications() map[string][]model.NodeConfidence {
	t := NewTaxonomy()
	return t.classifications
}
