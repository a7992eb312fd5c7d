// Package apperr defines the typed failure kinds of the claim pipeline.
//
// Callers branch on Kind via errors.As, never on message text. Only the
// orchestrator boundary decides what message a caller gets to see.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure as fatal or degradable
type Kind string

const (
	// KindValidation rejects a claim before any provider is called
	KindValidation Kind = "validation"
	// KindGeneration means the text-generation provider failed after all retries
	KindGeneration Kind = "generation"
	// KindProvider is a search/retrieval failure; it degrades into sentinel evidence
	KindProvider Kind = "provider"
	// KindPipeline wraps anything unexpected at the orchestrator boundary
	KindPipeline Kind = "pipeline"
)

var publicMessages = map[Kind]string{
	KindGeneration: "failed to generate response from the language model",
	KindProvider:   "evidence provider unavailable",
	KindPipeline:   "internal error while processing the claim",
}

// HTTPStatus maps the kind to the status returned by the API
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error type crossing package boundaries in the pipeline
type Error struct {
	Kind    Kind
	Op      string // Component/operation that failed, e.g. "llm.generate"
	Message string // Safe to show callers for validation errors only
	Err     error
}

// New creates an error without a cause
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an error around a cause
func Wrap(kind Kind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause to errors.Is/As
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && (t.Op == "" || t.Op == e.Op)
}

// From extracts the outermost *Error from a chain
func From(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindPipeline for untyped errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := From(err); ok {
		return e.Kind
	}
	return KindPipeline
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Public returns the message a caller may see. Provider and generation details
// never leak; validation messages are returned as written.
func Public(err error) string {
	if err == nil {
		return ""
	}
	e, ok := From(err)
	if !ok {
		return publicMessages[KindPipeline]
	}
	if e.Kind == KindValidation && e.Message != "" {
		return e.Message
	}
	if msg, ok := publicMessages[e.Kind]; ok {
		return msg
	}
	return publicMessages[KindPipeline]
}
