package device

import "fmt"

// ValidationError rejects malformed input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateError rejects a uniqueness violation on name or IP.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a device with %s %q already exists", e.Field, e.Value)
}

// NotFoundError marks a lookup for a device id that does not exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("device %d not found", e.ID)
}
