package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Knowledge store errors
	ErrEntryNotFound = errors.New("knowledge entry not found")
	ErrStoreCorrupt  = errors.New("knowledge store corrupt")
	ErrStoreClosed   = errors.New("knowledge store closed")

	// Validation errors
	ErrNoColumns       = errors.New("input has no columns")
	ErrInvalidType     = errors.New("unknown canonical type")
	ErrInvalidConfirm  = errors.New("confirmation confidence out of range")
	ErrEmptyColumnName = errors.New("column name cannot be empty")
)

// NewNotFoundError wraps ErrEntryNotFound with the looked-up key
func NewNotFoundError(columnKey string) error {
	return fmt.Errorf("%w: %s", ErrEntryNotFound, columnKey)
}

// NewCorruptStoreError wraps ErrStoreCorrupt with the store path and the
// underlying cause
func NewCorruptStoreError(path string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, path, cause)
}

// IsNotFoundError reports whether err indicates a missing knowledge entry
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}

// IsCorruptStoreError reports whether err indicates an unreadable store
func IsCorruptStoreError(err error) bool {
	return errors.Is(err, ErrStoreCorrupt)
}
