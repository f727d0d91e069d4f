package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingLimit is returned when the limit value is absent.
	ErrMissingLimit = errors.New("limit query parameter is required")

	// ErrInvalidLimit is returned when the limit value is not an integer.
	ErrInvalidLimit = errors.New("limit is not an integer")
)

// PageError reports the page that caused a batch to be discarded.
type PageError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}
