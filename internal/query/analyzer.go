// Package query implements the Query Analyzer (C6): a pure function from
// a query string to a feature record consumed by the fusion engine's
// adaptive weighting. No external calls, fully deterministic.
package query

import "strings"

// Features is the immutable feature record derived from a query string.
// It is passed through the pipeline as a value rather than hung off the
// query as mutable state.
type Features struct {
	TokenCount       int
	HasExactPhrase   bool
	HasBooleanOp     bool
	AvgTokenLength   float64
	ComplexityScalar float64
}

// booleanOperators are the recognized boolean/operator tokens (§4.6).
var booleanOperators = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {},
}

// Analyze derives Features from a query string.
func Analyze(q string) Features {
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return Features{}
	}

	hasExactPhrase := strings.Contains(q, `"`)
	hasBooleanOp := false
	totalLen := 0
	longTokens := 0

	for _, tok := range tokens {
		trimmed := strings.Trim(tok, `"`)
		if _, ok := booleanOperators[strings.ToUpper(trimmed)]; ok {
			hasBooleanOp = true
		}
		if strings.HasPrefix(tok, "+") || strings.HasPrefix(tok, "-") {
			hasBooleanOp = true
		}
		totalLen += len(trimmed)
		if len(trimmed) > 6 {
			longTokens++
		}
	}

	return Features{
		TokenCount:       len(tokens),
		HasExactPhrase:   hasExactPhrase,
		HasBooleanOp:     hasBooleanOp,
		AvgTokenLength:   float64(totalLen) / float64(len(tokens)),
		ComplexityScalar: float64(longTokens) / float64(len(tokens)),
	}
}

// IsShortExact reports whether q reads as a short, exact-term query: at
// most 3 tokens and carrying a quoted phrase or a boolean/operator term.
// Used by the fusion engine to shift weight toward lexical (§4.7).
func (f Features) IsShortExact() bool {
	return f.TokenCount > 0 && f.TokenCount <= 3 && (f.HasExactPhrase || f.HasBooleanOp)
}

// IsHighComplexity reports whether the query reads as semantically
// complex enough to shift weight toward dense retrieval (§4.7).
func (f Features) IsHighComplexity() bool {
	return f.ComplexityScalar > 0.7
}
