package store

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a logical collection name is unknown
	// or the store was opened with an unusable configuration.
	ErrConfiguration = errors.New("ffcs: configuration error")

	// ErrConnection is returned when the connectivity check fails.
	ErrConnection = errors.New("ffcs: store unreachable")

	// ErrNotFound is returned when a lookup by id or filter yields nothing.
	ErrNotFound = errors.New("ffcs: document not found")

	// ErrConflict is returned when an insert collides with an existing id.
	ErrConflict = errors.New("ffcs: document already exists")

	// ErrSchemaViolation is returned when the store rejects a document that
	// does not satisfy the collection schema.
	ErrSchemaViolation = errors.New("ffcs: document failed schema validation")

	// ErrConditionFailed is returned when an operation that requires a match
	// finds no document in the expected state.
	ErrConditionFailed = errors.New("ffcs: no document in the expected state")

	// ErrStore is the generic read/write failure.
	ErrStore = errors.New("ffcs: store operation failed")
)

// SchemaViolationError reports a store-side schema rejection together with
// the document that was attempted.
type SchemaViolationError struct {
	Collection string
	Field      string
	Doc        Doc
	Err        error
}

func (e *SchemaViolationError) Error() string {
	msg := fmt.Sprintf("ffcs: document failed validation for collection %s", e.Collection)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + fmt.Sprintf("; attempted document: %v", e.Doc)
}

func (e *SchemaViolationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSchemaViolation}
	}
	return []error{ErrSchemaViolation, e.Err}
}

// OpError wraps a backend failure with the operation and collection it hit.
type OpError struct {
	Op         string
	Collection string
	Err        error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("ffcs: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *OpError) Unwrap() []error { return []error{ErrStore, e.Err} }

func opError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	// Domain errors pass through untouched so callers can match them directly.
	for _, known := range []error{ErrNotFound, ErrConflict, ErrSchemaViolation, ErrConditionFailed, ErrConnection, ErrConfiguration} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &OpError{Op: op, Collection: collection, Err: err}
}

// Kind classifies errors for transports.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindStateGuard      Kind = "state_guard"
	KindConnection      Kind = "connection"
	KindSchemaViolation Kind = "schema_violation"
	KindConfiguration   Kind = "configuration"
	KindStore           Kind = "store"
)

// validationError is satisfied by client-side validation errors defined in
// other packages, which keeps this package free of an import cycle.
type validationError interface {
	error
	ValidationField() string
}

// KindOf maps an error to its Kind. Unknown errors are KindStore.
func KindOf(err error) Kind {
	var ve validationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrSchemaViolation):
		return KindSchemaViolation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrConditionFailed):
		return KindStateGuard
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindStore
	}
}
