package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTokenExpired    = fmt.Errorf("%w: invalid or expired authentication token", ErrUnauthenticated)
	ErrForbidden       = errors.New("forbidden: you do not have sufficient privileges to perform this action")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal error")

	ErrNotFound        = errors.New("not found")
	ErrBookNotFound    = fmt.Errorf("book %w", ErrNotFound)
	ErrLendingNotFound = fmt.Errorf("lending record %w", ErrNotFound)

	ErrConflict          = errors.New("conflict")
	ErrBookUnavailable   = fmt.Errorf("%w: book is not available for lending or out of stock", ErrConflict)
	ErrDuplicateRequest  = fmt.Errorf("%w: duplicate request", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrConflict)
	ErrLendingModified   = fmt.Errorf("%w: lending record was modified concurrently", ErrConflict)

	// ErrOutOfStock is returned by inventory stores when the conditional
	// decrement matched no row.
	ErrOutOfStock = errors.New("out of stock")
)

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func Internal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
