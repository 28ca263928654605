package flatgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the error kinds reported by the registry and the
// translation engines.
var (
	// ErrConfiguration is returned when a schema source is malformed or an
	// inclusion directive cannot be resolved. It is fatal to registry construction.
	ErrConfiguration = errors.New("flatgraph: configuration error")

	// ErrValidation is returned when a required field has neither a value nor a default.
	ErrValidation = errors.New("flatgraph: validation failed")

	// ErrReference is returned when a named reference cannot be resolved.
	ErrReference = errors.New("flatgraph: unresolved reference")

	// ErrDuplicateUnique is returned when a unique record type appears more than once.
	ErrDuplicateUnique = errors.New("flatgraph: duplicate unique record")

	// ErrUnknownType is returned when a record type name is not in the registry.
	ErrUnknownType = errors.New("flatgraph: unknown record type")
)

// ConfigurationError represents a schema source or registry bootstrap error.
type ConfigurationError struct {
	Source  string // Schema source name (if applicable)
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("flatgraph: configuration error")
	if e.Source != "" {
		b.WriteString(" in source ")
		b.WriteString(e.Source)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError returns a new ConfigurationError.
func NewConfigurationError(source, message string, cause error) *ConfigurationError {
	return &ConfigurationError{Source: source, Message: message, Cause: cause}
}

// IsConfigurationError reports whether the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// ValidationError represents an object-scoped validation failure.
// The object that caused it is skipped; the pass continues.
type ValidationError struct {
	Type    string // Record type name
	Object  string // Object or record name (if known)
	Field   string // Field name (if applicable)
	Value   any    // Rejected value (if applicable)
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("flatgraph: validation error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Object != "" {
		fmt.Fprintf(&b, " object %q", e.Object)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a new ValidationError.
func NewValidationError(typeName, object, field, message string) *ValidationError {
	return &ValidationError{Type: typeName, Object: object, Field: field, Message: message}
}

// IsValidationError reports whether the error is a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// ReferenceError represents a field-scoped reference that could not be resolved.
// The relationship is left empty; the pass continues.
type ReferenceError struct {
	Type   string // Type of the referencing record
	Object string // Name of the referencing record
	Field  string // Reference field
	Target string // Name that failed to resolve
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("flatgraph: %s %q field %q: unresolved reference %q", e.Type, e.Object, e.Field, e.Target)
	}
	return fmt.Sprintf("flatgraph: %s field %q: unresolved reference %q", e.Type, e.Field, e.Target)
}

// Is reports whether the target matches ErrReference.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReference
}

// NewReferenceError returns a new ReferenceError.
func NewReferenceError(typeName, object, field, target string) *ReferenceError {
	return &ReferenceError{Type: typeName, Object: object, Field: field, Target: target}
}

// IsReferenceError reports whether the error is a ReferenceError.
func IsReferenceError(err error) bool {
	var e *ReferenceError
	return errors.As(err, &e)
}

// DuplicateUniqueError represents a unique record type present more than once in a store.
type DuplicateUniqueError struct {
	Type  string // Record type name
	Count int    // Number of records found
}

// Error implements the error interface.
func (e *DuplicateUniqueError) Error() string {
	return fmt.Sprintf("flatgraph: unique type %s appears %d times", e.Type, e.Count)
}

// Is reports whether the target matches ErrDuplicateUnique.
func (e *DuplicateUniqueError) Is(target error) bool {
	return target == ErrDuplicateUnique
}

// NewDuplicateUniqueError returns a new DuplicateUniqueError.
func NewDuplicateUniqueError(typeName string, count int) *DuplicateUniqueError {
	return &DuplicateUniqueError{Type: typeName, Count: count}
}

// IsDuplicateUniqueError reports whether the error is a DuplicateUniqueError.
func IsDuplicateUniqueError(err error) bool {
	var e *DuplicateUniqueError
	return errors.As(err, &e)
}

// UnknownTypeError represents a flat record whose type name is not registered.
// Such records are preserved as opaque records.
type UnknownTypeError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("flatgraph: unknown record type %q", e.Name)
}

// Is reports whether the target matches ErrUnknownType.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// NewUnknownTypeError returns a new UnknownTypeError.
func NewUnknownTypeError(name string) *UnknownTypeError {
	return &UnknownTypeError{Name: name}
}

// IsUnknownTypeError reports whether the error is an UnknownTypeError.
func IsUnknownTypeError(err error) bool {
	var e *UnknownTypeError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "flatgraph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("flatgraph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors, so errors.Is and errors.As
// look through an AggregateError.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
