// Package errors provides the structured error taxonomy for the
// retrieval core (spec.md §7). Categories are named, not numbered: the
// spec already supplies the category names the core surfaces, so there
// is no separate ERR_1XX-style numeric scheme to maintain.
package errors

// Code is one of the named error categories from spec.md §7.
type Code string

const (
	// CodeInvalidQuery: empty/whitespace query or k out of bounds. Hard.
	CodeInvalidQuery Code = "InvalidQuery"
	// CodeInvalidFilter: bad content type, inverted date range, unknown
	// taxonomy version, malformed node id. Hard.
	CodeInvalidFilter Code = "InvalidFilter"
	// CodeLexicalFailed: store error or deadline exceeded for the lexical
	// stage. Soft; the orchestrator degrades.
	CodeLexicalFailed Code = "LexicalFailed"
	// CodeDenseFailed: store error or deadline exceeded for the dense
	// stage. Soft; the orchestrator degrades.
	CodeDenseFailed Code = "DenseFailed"
	// CodeAllRetrievalFailed: both stages failed. Hard.
	CodeAllRetrievalFailed Code = "AllRetrievalFailed"
	// CodeTaxonomyCorrupt: cycle or missing referenced node. Hard fault.
	CodeTaxonomyCorrupt Code = "TaxonomyCorrupt"
	// CodeRerankFailed: soft; falls back to the heuristic path.
	CodeRerankFailed Code = "RerankFailed"
	// CodeCacheFailed: soft; request proceeds without cache.
	CodeCacheFailed Code = "CacheFailed"
	// CodeCancelled: caller-initiated termination. Hard.
	CodeCancelled Code = "Cancelled"
)

// softCodes are degradations: captured into SearchMetrics.Degradations
// and never thrown to the caller (§7 propagation policy).
var softCodes = map[Code]bool{
	CodeLexicalFailed: true,
	CodeDenseFailed:   true,
	CodeRerankFailed:  true,
	CodeCacheFailed:   true,
}

// IsSoft reports whether a code is a degradation rather than a hard
// failure that must cross the public boundary.
func (c Code) IsSoft() bool {
	return softCodes[c]
}
