package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindDuplicateIdentifier Kind = "duplicate_identifier"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindQueueingFailed      Kind = "queueing_failed"
	KindExtractionFailed    Kind = "extraction_failed"
	KindEmbeddingFailed     Kind = "embedding_failed"
	KindProjectionFailed    Kind = "projection_failed"
	KindInvalidTransition   Kind = "invalid_transition"
)

// Error carries a Kind so callers can branch on the failure class without
// string matching. Fields holds per-field validation messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, apperror.NotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	Validation          = &Error{Kind: KindValidation}
	NotFound            = &Error{Kind: KindNotFound}
	DuplicateIdentifier = &Error{Kind: KindDuplicateIdentifier}
	StorageUnavailable  = &Error{Kind: KindStorageUnavailable}
	QueueingFailed      = &Error{Kind: KindQueueingFailed}
	ExtractionFailed    = &Error{Kind: KindExtractionFailed}
	EmbeddingFailed     = &Error{Kind: KindEmbeddingFailed}
	ProjectionFailed    = &Error{Kind: KindProjectionFailed}
	InvalidTransition   = &Error{Kind: KindInvalidTransition}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewValidation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
