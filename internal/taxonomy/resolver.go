// Package taxonomy implements the Taxonomy Scope Resolver (C5): expanding
// a set of taxonomy node ids to the closure of their descendants under a
// given, immutable taxonomy version.
//
// The adjacency-list-plus-cache shape here is adapted from a parent/child
// taxonomy walker seen in the example pack (a NCBI-style taxonomy loader
// building a parent->child map once and answering descendant queries by
// walking it); this resolver keys that cache per taxonomy version instead
// of globally, since a version is the unit the spec declares immutable.
package taxonomy

import (
	"context"
	"fmt"
	"sync"

	"github.com/dtrag/retrieval-core/internal/model"
)

// Resolver answers descendant-closure queries against a TaxonomyReader,
// memoizing the adjacency list per version. A version seen for the first
// time gets its own lazily filled graph; a version's graph is never
// invalidated, since a version, once built, never changes (§4.5).
type Resolver struct {
	reader model.TaxonomyReader

	mu    sync.RWMutex
	cache map[string]*versionGraph // version -> adjacency
}

type versionGraph struct {
	mu       sync.RWMutex
	children map[string][]string // nodeID -> direct children, filled lazily
}

// New constructs a Resolver over the given taxonomy reader.
func New(reader model.TaxonomyReader) *Resolver {
	return &Resolver{
		reader: reader,
		cache:  make(map[string]*versionGraph),
	}
}

// ErrCorruptTaxonomy is returned when traversal detects a cycle, which
// must never exist in a well-formed DAG (§4.5: detection is defensive).
type ErrCorruptTaxonomy struct {
	Version string
	NodeID  string
}

func (e *ErrCorruptTaxonomy) Error() string {
	return fmt.Sprintf("taxonomy corrupt: cycle detected at node %q in version %q", e.NodeID, e.Version)
}

// ExpandDescendants returns the union of roots and all nodes transitively
// reachable from them via parent->child edges, in O(E) over the edges
// reachable from roots.
func (r *Resolver) ExpandDescendants(ctx context.Context, version string, roots []string) (map[string]struct{}, error) {
	g := r.graphFor(version)

	result := make(map[string]struct{}, len(roots)*2)
	visiting := make(map[string]struct{})

	var walk func(nodeID string) error
	walk = func(nodeID string) error {
		if _, onStack := visiting[nodeID]; onStack {
			return &ErrCorruptTaxonomy{Version: version, NodeID: nodeID}
		}
		if _, already := result[nodeID]; already {
			return nil
		}
		visiting[nodeID] = struct{}{}
		defer delete(visiting, nodeID)

		result[nodeID] = struct{}{}

		children, err := g.childrenOf(ctx, r.reader, version, nodeID)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Resolver) graphFor(version string) *versionGraph {
	r.mu.RLock()
	g, ok := r.cache[version]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.cache[version]; ok {
		return g
	}
	g = &versionGraph{children: make(map[string][]string)}
	r.cache[version] = g
	return g
}

// childrenOf returns the direct children of nodeID, fetching and caching
// them on first access within this version's graph.
func (g *versionGraph) childrenOf(ctx context.Context, reader model.TaxonomyReader, version, nodeID string) ([]string, error) {
	g.mu.RLock()
	children, ok := g.children[nodeID]
	g.mu.RUnlock()
	if ok {
		return children, nil
	}

	children, err := reader.Children(ctx, version, nodeID)
	if err != nil {
		return nil, fmt.Errorf("resolve children of %q: %w", nodeID, err)
	}

	g.mu.Lock()
	g.children[nodeID] = children
	g.mu.Unlock()
	return children, nil
}
