package crud

import "fmt"

// The error kinds from spec.md §7. Adapters and the engine wrap native
// driver/backend errors into one of these so callers can discriminate
// with errors.As regardless of which backend produced the failure.

// ConnectionError reports a backend that could not be reached.
type ConnectionError struct {
	StorageName string
	Err         error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error on %q: %v", e.StorageName, e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup by id that found nothing.
type NotFoundError struct {
	Model string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Model, e.ID)
}

// DuplicateError reports a unique-constraint violation on create.
type DuplicateError struct {
	Model string
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: duplicate value for %q: %v", e.Model, e.Field, e.Err)
}
func (e *DuplicateError) Unwrap() error { return e.Err }

// ValidationError reports a schema or identifier violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Message)
}

// QueryError reports a query the backend rejected.
type QueryError struct {
	StorageName string
	Err         error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error on %q: %v", e.StorageName, e.Err)
}
func (e *QueryError) Unwrap() error { return e.Err }

// TransactionError reports a failed commit or a rollback requirement.
type TransactionError struct {
	StorageName string
	Err         error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error on %q: %v", e.StorageName, e.Err)
}
func (e *TransactionError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing binding or malformed metadata.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// PermissionError reports a failed security check.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	StorageName string
	Err         error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout on %q: %v", e.StorageName, e.Err)
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// StorageError is the fallback wrapping of a backend error that does not
// fit a more specific kind.
type StorageError struct {
	StorageName string
	Operation   string
	Err         error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s on %q: %v", e.Operation, e.StorageName, e.Err)
}
func (e *StorageError) Unwrap() error { return e.Err }
