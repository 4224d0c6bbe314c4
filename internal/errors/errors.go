package errors

import "fmt"

// RetrievalError is the structured error type the core returns across its
// public boundary. It carries enough context for logging and for the
// caller to branch on category without string matching.
type RetrievalError struct {
	Code    Code
	Message string
	Details map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, New(CodeInvalidQuery, "", nil))
// works regardless of message or cause.
func (e *RetrievalError) Is(target error) bool {
	t, ok := target.(*RetrievalError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a key-value detail to the error, for method chaining.
func (e *RetrievalError) WithDetail(key, value string) *RetrievalError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a RetrievalError with the given code and message.
func New(code Code, message string, cause error) *RetrievalError {
	return &RetrievalError{Code: code, Message: message, Cause: cause}
}

// Wrap creates a RetrievalError from an existing error, reusing its
// message. Returns nil if err is nil.
func Wrap(code Code, err error) *RetrievalError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IsSoft reports whether err is a RetrievalError whose code is a
// degradation rather than a hard failure.
func IsSoft(err error) bool {
	re, ok := err.(*RetrievalError)
	return ok && re.Code.IsSoft()
}

// GetCode extracts the Code from err, or "" if it is not a RetrievalError.
func GetCode(err error) Code {
	if re, ok := err.(*RetrievalError); ok {
		return re.Code
	}
	return ""
}
