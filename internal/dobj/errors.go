package dobj

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes structural errors.
type ErrorCode string

const (
	// ErrCodeUnknownAttribute indicates an attribute name missing from the
	// object's accessor table, usually a client/server version mismatch.
	ErrCodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"

	// ErrCodeFieldType indicates a value or operation that does not fit the
	// declared type of a field.
	ErrCodeFieldType ErrorCode = "FIELD_TYPE"

	// ErrCodeIndexRange indicates an element index outside an array field.
	ErrCodeIndexRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeLocalConflict indicates a local attribute already set under a
	// key compatible with the one being set.
	ErrCodeLocalConflict ErrorCode = "LOCAL_CONFLICT"

	// ErrCodeNotInTransaction indicates a commit or cancel without a start.
	ErrCodeNotInTransaction ErrorCode = "NOT_IN_TRANSACTION"

	// ErrCodeDuplicateSubscriber indicates a subscriber registered twice.
	ErrCodeDuplicateSubscriber ErrorCode = "DUPLICATE_SUBSCRIBER"

	// ErrCodeNoManager indicates an operation that needs a manager on an
	// object that has none.
	ErrCodeNoManager ErrorCode = "NO_MANAGER"

	// ErrCodeNotComparable indicates a listener or subscriber whose dynamic
	// type cannot be compared for identity.
	ErrCodeNotComparable ErrorCode = "NOT_COMPARABLE"
)

// StructuralError reports a programmer error or corrupted structure.
//
// Mutators panic with a *StructuralError; ApplyToObject returns one. Neither
// case is retried.
type StructuralError struct {
	Code    ErrorCode
	Message string

	// Oid identifies the object involved, when known.
	Oid int

	// Field names the attribute involved, when relevant.
	Field string
}

func (e *StructuralError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (oid=%d, field=%s)", e.Code, e.Message, e.Oid, e.Field)
	}
	return fmt.Sprintf("%s: %s (oid=%d)", e.Code, e.Message, e.Oid)
}

// IsStructuralError reports whether err is a StructuralError with the given code.
func IsStructuralError(err error, code ErrorCode) bool {
	var se *StructuralError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// ErrConcurrentModification is the panic value raised when a DSet changes
// while one of its iterators is in use.
var ErrConcurrentModification = errors.New("dobj: distributed set modified during iteration")

// ObjectAccessError is reported to subscribers whose request could not be
// satisfied, either because access was denied or because of a lower-level
// fault.
type ObjectAccessError struct {
	// Key is a message key suitable for translation, e.g. "m.access_denied".
	Key string

	// Cause is the underlying fault, if any.
	Cause error
}

// Message keys used by ObjectAccessError.
const (
	MsgAccessDenied = "m.access_denied"
	MsgInvalidOid   = "m.invalid_oid"
)

func (e *ObjectAccessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("object access failed: %s: %v", e.Key, e.Cause)
	}
	return "object access failed: " + e.Key
}

func (e *ObjectAccessError) Unwrap() error {
	return e.Cause
}

// NoSuchObjectError is reported when a request names an unknown oid.
type NoSuchObjectError struct {
	Oid int
}

func (e *NoSuchObjectError) Error() string {
	return fmt.Sprintf("no such object: oid=%d", e.Oid)
}

// IsAccessDenied reports whether err is an ObjectAccessError for a denied request.
func IsAccessDenied(err error) bool {
	var ae *ObjectAccessError
	if errors.As(err, &ae) {
		return ae.Key == MsgAccessDenied
	}
	return false
}

// IsNoSuchObject reports whether err names an unknown object.
func IsNoSuchObject(err error) bool {
	var ne *NoSuchObjectError
	return errors.As(err, &ne)
}
