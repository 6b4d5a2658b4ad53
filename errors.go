package wherekit

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for predicate composition.
var (
	// ErrInvalidArgument is matched by every ArgumentError.
	ErrInvalidArgument = errors.New("wherekit: invalid argument")

	// ErrUnsupportedType is matched by every UnsupportedTypeError.
	ErrUnsupportedType = errors.New("wherekit: unsupported column type")

	// ErrMaterializationDisallowed is matched by every MaterializationDisallowedError.
	ErrMaterializationDisallowed = errors.New("wherekit: materialization disallowed")

	// ErrInvalidComposition describes composing further clauses onto a
	// predicate that already returns no results. It is never returned by
	// the builder; it is attached to the warning that gets logged instead.
	ErrInvalidComposition = errors.New("wherekit: composing onto a predicate that returns no results")
)

// ArgumentError is returned for nil or invalid arguments, such as an empty
// column name or a nil nested query.
type ArgumentError struct {
	Name   string // Argument name
	Reason string // What is wrong with it
}

// Error returns the error string.
func (e *ArgumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("wherekit: invalid argument %q", e.Name)
	}
	return fmt.Sprintf("wherekit: invalid argument %q: %s", e.Name, e.Reason)
}

// Is reports whether the target error matches ArgumentError.
// This allows errors.Is(argErr, ErrInvalidArgument) to return true.
func (e *ArgumentError) Is(err error) bool {
	return err == ErrInvalidArgument
}

// NewArgumentError returns a new ArgumentError for the given argument.
func NewArgumentError(name, reason string) *ArgumentError {
	return &ArgumentError{Name: name, Reason: reason}
}

// IsArgumentError returns true if the error is an ArgumentError.
func IsArgumentError(err error) bool {
	if err == nil {
		return false
	}
	var e *ArgumentError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidArgument)
}

// SupportedColumnTypes lists the column types a materialized sub-query may return.
var SupportedColumnTypes = []string{"int32", "int64", "string", "uuid"}

// UnsupportedTypeError is returned when a materialized sub-query returns a
// column whose type cannot be turned into a typed IN list.
type UnsupportedTypeError struct {
	Column string // Result column name, if known
	Type   string // Declared or detected type
}

// Error returns the error string.
func (e *UnsupportedTypeError) Error() string {
	allowed := strings.Join(SupportedColumnTypes, ", ")
	if e.Column != "" {
		return fmt.Sprintf("wherekit: column %q has unsupported type %s (allowed: %s)", e.Column, e.Type, allowed)
	}
	return fmt.Sprintf("wherekit: unsupported column type %s (allowed: %s)", e.Type, allowed)
}

// Is reports whether the target error matches UnsupportedTypeError.
func (e *UnsupportedTypeError) Is(err error) bool {
	return err == ErrUnsupportedType
}

// NewUnsupportedTypeError returns a new UnsupportedTypeError.
func NewUnsupportedTypeError(column, typ string) *UnsupportedTypeError {
	return &UnsupportedTypeError{Column: column, Type: typ}
}

// IsUnsupportedType returns true if the error is an UnsupportedTypeError.
func IsUnsupportedType(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedTypeError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedType)
}

// MaterializationDisallowedError is returned when a nested query comes from
// an incompatible data source but forbids eager materialization.
type MaterializationDisallowedError struct {
	Parent string // Data source of the predicate under construction
	Nested string // Data source of the nested query
}

// Error returns the error string.
func (e *MaterializationDisallowedError) Error() string {
	return fmt.Sprintf(
		"wherekit: nested query from source %q cannot be embedded into source %q and AllowMaterialization is false",
		e.Nested, e.Parent,
	)
}

// Is reports whether the target error matches MaterializationDisallowedError.
func (e *MaterializationDisallowedError) Is(err error) bool {
	return err == ErrMaterializationDisallowed
}

// NewMaterializationDisallowedError returns a new MaterializationDisallowedError.
func NewMaterializationDisallowedError(parent, nested string) *MaterializationDisallowedError {
	return &MaterializationDisallowedError{Parent: parent, Nested: nested}
}

// IsMaterializationDisallowed returns true if the error is a MaterializationDisallowedError.
func IsMaterializationDisallowed(err error) bool {
	if err == nil {
		return false
	}
	var e *MaterializationDisallowedError
	return errors.As(err, &e) || errors.Is(err, ErrMaterializationDisallowed)
}

// MaterializeError wraps a failure while executing or reading a nested query.
type MaterializeError struct {
	Source string // Data source of the nested query
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MaterializeError) Error() string {
	return fmt.Sprintf("wherekit: materializing nested query from %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *MaterializeError) Unwrap() error {
	return e.Err
}

// NewMaterializeError returns a new MaterializeError.
func NewMaterializeError(source string, err error) *MaterializeError {
	return &MaterializeError{Source: source, Err: err}
}
