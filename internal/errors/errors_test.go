package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection refused")

	// When: wrapping with a RetrievalError
	wrapped := Wrap(CodeLexicalFailed, originalErr)

	// Then: unwrapping returns the original error
	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestRetrievalError_Is_MatchesByCode(t *testing.T) {
	// Given: two distinct errors with the same code
	a := New(CodeInvalidFilter, "bad content type", nil)
	b := New(CodeInvalidFilter, "unknown taxonomy version", nil)

	// Then: errors.Is matches on code alone, ignoring message
	assert.True(t, errors.Is(a, b))
}

func TestRetrievalError_Is_DoesNotMatchDifferentCode(t *testing.T) {
	a := New(CodeLexicalFailed, "timeout", nil)
	b := New(CodeDenseFailed, "timeout", nil)
	assert.False(t, errors.Is(a, b))
}

func TestCode_IsSoft_ClassifiesDegradationsCorrectly(t *testing.T) {
	tests := []struct {
		code Code
		soft bool
	}{
		{CodeLexicalFailed, true},
		{CodeDenseFailed, true},
		{CodeRerankFailed, true},
		{CodeCacheFailed, true},
		{CodeInvalidQuery, false},
		{CodeInvalidFilter, false},
		{CodeAllRetrievalFailed, false},
		{CodeTaxonomyCorrupt, false},
		{CodeCancelled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.soft, tt.code.IsSoft(), "code %s", tt.code)
	}
}

func TestWrap_NilError_ReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(CodeCacheFailed, nil))
}

func TestGetCode_NonRetrievalError_ReturnsEmpty(t *testing.T) {
	assert.Equal(t, Code(""), GetCode(errors.New("plain error")))
}
