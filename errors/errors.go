/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a schema or entity is not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when attempting to create an entity that already exists
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConditionFailed is returned when a conditional write fails
	ErrConditionFailed = errors.New("condition check failed")

	// ErrSchema is returned when a model declaration cannot be turned into a schema
	ErrSchema = errors.New("invalid model schema")

	// ErrDuplicateKind is returned when a kind tag is registered twice
	ErrDuplicateKind = errors.New("duplicate kind")

	// ErrRequiredFieldMissing is returned when a non-optional property has no value
	ErrRequiredFieldMissing = errors.New("required field missing")

	// ErrWireKindMismatch is returned when a wire value has an unexpected variant
	ErrWireKindMismatch = errors.New("wire kind mismatch")

	// ErrKeySchemaMismatch is returned when a wire key does not match the key schema
	ErrKeySchemaMismatch = errors.New("key schema mismatch")
)

// NotFoundError represents an error when a schema or entity is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when an entity already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a failed conditional operation.
// Err, when set, says what the condition found and is matched by errors.Is.
type ConditionFailedError struct {
	Operation string
	Condition string
	Err       error
}

func (e *ConditionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("condition check failed for %s operation: %s: %v", e.Operation, e.Condition, e.Err)
	}
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Unwrap() error {
	return e.Err
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// SchemaError represents a malformed model declaration.
// It is raised while building schemas and is never recovered from.
type SchemaError struct {
	Type    string
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s: field %s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("schema %s: %s", e.Type, e.Message)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// DuplicateKindError represents a second registration of the same kind tag
type DuplicateKindError struct {
	Kind string
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("kind %q already registered", e.Kind)
}

func (e *DuplicateKindError) Is(target error) bool {
	return target == ErrDuplicateKind
}

// RequiredFieldMissingError represents a non-optional, non-container property
// that is nil on encode or Null/absent on decode
type RequiredFieldMissingError struct {
	Field string
}

func (e *RequiredFieldMissingError) Error() string {
	return fmt.Sprintf("non-optional property %q is not set", e.Field)
}

func (e *RequiredFieldMissingError) Is(target error) bool {
	return target == ErrRequiredFieldMissing
}

// WireKindMismatchError represents a wire value whose variant differs from
// the one the property schema maps to
type WireKindMismatchError struct {
	Field    string
	Expected string
	Got      string
}

func (e *WireKindMismatchError) Error() string {
	return fmt.Sprintf("property %q: expected %s, got %s", e.Field, e.Expected, e.Got)
}

func (e *WireKindMismatchError) Is(target error) bool {
	return target == ErrWireKindMismatch
}

// KeySchemaMismatchError represents a key whose path does not fit the key schema
type KeySchemaMismatchError struct {
	Message string
}

func (e *KeySchemaMismatchError) Error() string {
	return fmt.Sprintf("key schema mismatch: %s", e.Message)
}

func (e *KeySchemaMismatchError) Is(target error) bool {
	return target == ErrKeySchemaMismatch
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, key string) error {
	return &NotFoundError{Type: entityType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(entityType, key string) error {
	return &AlreadyExistsError{Type: entityType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// NewWriteConflictError reports a write whose existence precondition failed:
// an insert over a stored entity or an update of a missing one. The result
// matches ErrConditionFailed and ErrAlreadyExists or ErrNotFound.
func NewWriteConflictError(operation, entityType, key string) error {
	if operation == "insert" {
		return &ConditionFailedError{Operation: operation, Condition: "entity must not exist",
			Err: NewAlreadyExistsError(entityType, key)}
	}
	return &ConditionFailedError{Operation: operation, Condition: "entity must exist",
		Err: NewNotFoundError(entityType, key)}
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(typeName, field, format string, args ...any) error {
	return &SchemaError{Type: typeName, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewDuplicateKindError creates a new DuplicateKindError
func NewDuplicateKindError(kind string) error {
	return &DuplicateKindError{Kind: kind}
}

// NewRequiredFieldMissingError creates a new RequiredFieldMissingError
func NewRequiredFieldMissingError(field string) error {
	return &RequiredFieldMissingError{Field: field}
}

// NewWireKindMismatchError creates a new WireKindMismatchError
func NewWireKindMismatchError(field, expected, got string) error {
	return &WireKindMismatchError{Field: field, Expected: expected, Got: got}
}

// NewKeySchemaMismatchError creates a new KeySchemaMismatchError
func NewKeySchemaMismatchError(format string, args ...any) error {
	return &KeySchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsSchemaError checks if an error is a schema error
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsDuplicateKind checks if an error is a duplicate kind error
func IsDuplicateKind(err error) bool {
	return errors.Is(err, ErrDuplicateKind)
}

// IsRequiredFieldMissing checks if an error is a required field missing error
func IsRequiredFieldMissing(err error) bool {
	return errors.Is(err, ErrRequiredFieldMissing)
}

// IsWireKindMismatch checks if an error is a wire kind mismatch error
func IsWireKindMismatch(err error) bool {
	return errors.Is(err, ErrWireKindMismatch)
}

// IsKeySchemaMismatch checks if an error is a key schema mismatch error
func IsKeySchemaMismatch(err error) bool {
	return errors.Is(err, ErrKeySchemaMismatch)
}
