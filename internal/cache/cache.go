// Package cache implements the Result Cache (C9): an in-process,
// thread-safe LRU with TTL eviction over golang-lru/v2's expirable list,
// plus the canonical key derivation the orchestrator uses before every
// lookup. Defensive copying on Get and coarse prefix invalidation follow
// the teacher's caching discipline; the canonicalization scheme itself
// implements spec.md §4.9's key format.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dtrag/retrieval-core/internal/model"
)

// DefaultCapacity and DefaultTTL are the spec's documented cache defaults.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 3600 * time.Second
)

type entry struct {
	hits              []model.SearchHit
	filterFingerprint string
}

// Cache is the Result Cache (C9). A nil *Cache is a valid no-op cache:
// Get always misses and Put is a no-op, so the orchestrator can run with
// caching disabled without a separate code path.
type Cache struct {
	lru *lru.LRU[string, entry]
}

// New constructs a cache with the given capacity and TTL. Zero values
// fall back to the spec's documented defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: lru.NewLRU[string, entry](capacity, nil, ttl)}
}

// Get returns a defensive copy of the cached hits for key, or false if
// absent or expired.
func (c *Cache) Get(key string) ([]model.SearchHit, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]model.SearchHit, len(e.hits))
	copy(out, e.hits)
	return out, true
}

// Put inserts hits under key, tagged with filterFingerprint for later
// coarse invalidation. A defensive copy is stored so later caller-side
// mutation of hits can't corrupt the cache.
func (c *Cache) Put(key, filterFingerprint string, hits []model.SearchHit) {
	if c == nil {
		return
	}
	stored := make([]model.SearchHit, len(hits))
	copy(stored, hits)
	c.lru.Add(key, entry{hits: stored, filterFingerprint: filterFingerprint})
}

// InvalidatePrefix evicts every entry whose filter fingerprint starts
// with filterFingerprint (an exact fingerprint included), e.g. on a
// taxonomy version change (§4.9).
func (c *Cache) InvalidatePrefix(filterFingerprint string) {
	if c == nil {
		return
	}
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && strings.HasPrefix(e.filterFingerprint, filterFingerprint) {
			c.lru.Remove(key)
		}
	}
}

// Len returns the current number of live entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// CanonicalKey derives the cache key and filter fingerprint for a query,
// filter, and option set, per §4.9/§4.10: query text lower-cased and
// NFC-normalized, filter serialized with sorted keys, floats quantized
// to 6 decimals, the whole form hashed with SHA-256 truncated to 128 bits.
func CanonicalKey(queryText string, f model.Filter, opts model.Options) (key, filterFingerprint string) {
	filterFingerprint = canonicalFilter(f)
	canonicalQuery := norm.NFC.String(strings.ToLower(strings.TrimSpace(queryText)))

	form := fmt.Sprintf("q=%s|filter=%s|n_lex=%d|n_vec=%d|rerank=%t|norm=%s",
		canonicalQuery, filterFingerprint, opts.NLex, opts.NVec, opts.EnableRerank, opts.Normalization)

	sum := sha256.Sum256([]byte(form))
	key = hex.EncodeToString(sum[:16])
	return key, filterFingerprint
}

func canonicalFilter(f model.Filter) string {
	nodeIDs := append([]string(nil), f.TaxonomyNodeIDs...)
	sort.Strings(nodeIDs)
	contentTypes := append([]string(nil), f.ContentTypes...)
	sort.Strings(contentTypes)

	var b strings.Builder
	fmt.Fprintf(&b, "content_types=%s;", strings.Join(contentTypes, ","))
	fmt.Fprintf(&b, "date_from=%s;", formatTime(f.DateFrom))
	fmt.Fprintf(&b, "date_to=%s;", formatTime(f.DateTo))
	fmt.Fprintf(&b, "min_confidence=%s;", quantize(f.MinConfidence))
	fmt.Fprintf(&b, "taxonomy_node_ids=%s;", strings.Join(nodeIDs, ","))
	fmt.Fprintf(&b, "taxonomy_version=%s", f.TaxonomyVersion)
	return b.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func quantize(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
