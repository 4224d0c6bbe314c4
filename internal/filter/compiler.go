// Package filter implements the Filter Compiler (C2): turning a Filter
// record into a CompiledFilter the store evaluates with bound parameters
// — never by splicing user text into a query string.
package filter

import (
	"context"
	"regexp"
	"time"

	dtragerrors "github.com/dtrag/retrieval-core/internal/errors"
	"github.com/dtrag/retrieval-core/internal/model"
	"github.com/dtrag/retrieval-core/internal/taxonomy"
)

// ContentTypeWhitelist is the recognized set of content types (§3).
var ContentTypeWhitelist = map[string]struct{}{
	"pdf": {}, "markdown": {}, "html": {}, "plain": {},
}

// nodeIDPattern admits [a-zA-Z0-9_-] and the UUID form; anything else is
// rejected before it reaches the store (§4.2).
var nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Compiler compiles Filter records, resolving taxonomy scopes via a
// Resolver (C5) when a filter specifies one.
type Compiler struct {
	taxonomy        *taxonomy.Resolver
	knownVersions   func(ctx context.Context) (map[string]struct{}, error)
	defaultMinConf  float64
}

// New constructs a Compiler. knownVersions supplies the taxonomy
// reader's version catalog for the "unknown version" check.
func New(resolver *taxonomy.Resolver, reader model.TaxonomyReader) *Compiler {
	return &Compiler{
		taxonomy: resolver,
		knownVersions: func(ctx context.Context) (map[string]struct{}, error) {
			versions, err := reader.ListVersions(ctx)
			if err != nil {
				return nil, err
			}
			set := make(map[string]struct{}, len(versions))
			for _, v := range versions {
				set[v] = struct{}{}
			}
			return set, nil
		},
		defaultMinConf: model.DefaultMinConfidence,
	}
}

// Compile validates f and produces a CompiledFilter, or a RetrievalError
// with code InvalidFilter / TaxonomyCorrupt.
func (c *Compiler) Compile(ctx context.Context, f model.Filter) (model.CompiledFilter, error) {
	var out model.CompiledFilter

	minConf := f.MinConfidence
	if minConf < model.DefaultMinConfidence {
		minConf = model.DefaultMinConfidence
	}
	out.MinConfidence = minConf

	for _, ct := range f.ContentTypes {
		if _, ok := ContentTypeWhitelist[ct]; !ok {
			return model.CompiledFilter{}, dtragerrors.New(dtragerrors.CodeInvalidFilter,
				"content type not on whitelist: "+ct, nil)
		}
	}
	out.ContentTypes = f.ContentTypes

	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return model.CompiledFilter{}, dtragerrors.New(dtragerrors.CodeInvalidFilter,
			"date_from is after date_to", nil)
	}
	out.DateFrom = toUnix(f.DateFrom)
	out.DateTo = toUnix(f.DateTo)

	if len(f.TaxonomyNodeIDs) > 0 {
		if f.TaxonomyVersion == "" {
			return model.CompiledFilter{}, dtragerrors.New(dtragerrors.CodeInvalidFilter,
				"taxonomy_version is required when taxonomy_node_ids is non-empty", nil)
		}
		for _, id := range f.TaxonomyNodeIDs {
			if !nodeIDPattern.MatchString(id) {
				return model.CompiledFilter{}, dtragerrors.New(dtragerrors.CodeInvalidFilter,
					"malformed taxonomy node id: "+id, nil)
			}
		}

		versions, err := c.knownVersions(ctx)
		if err != nil {
			return model.CompiledFilter{}, dtragerrors.Wrap(dtragerrors.CodeInvalidFilter, err)
		}
		if _, ok := versions[f.TaxonomyVersion]; !ok {
			return model.CompiledFilter{}, dtragerrors.New(dtragerrors.CodeInvalidFilter,
				"unknown taxonomy version: "+f.TaxonomyVersion, nil)
		}

		nodeSet, err := c.taxonomy.ExpandDescendants(ctx, f.TaxonomyVersion, f.TaxonomyNodeIDs)
		if err != nil {
			var corrupt *taxonomy.ErrCorruptTaxonomy
			if asCorrupt(err, &corrupt) {
				return model.CompiledFilter{}, dtragerrors.Wrap(dtragerrors.CodeTaxonomyCorrupt, err)
			}
			return model.CompiledFilter{}, dtragerrors.Wrap(dtragerrors.CodeInvalidFilter, err)
		}
		out.NodeSet = nodeSet
	}

	return out, nil
}

func toUnix(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}

func asCorrupt(err error, target **taxonomy.ErrCorruptTaxonomy) bool {
	if c, ok := err.(*taxonomy.ErrCorruptTaxonomy); ok {
		*target = c
		return true
	}
	return false
}
