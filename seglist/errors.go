// Package seglist provides segregated-fits heap space allocation
package seglist

import "errors"

// Error definitions
var (
	// ErrZeroSize is returned when a zero-byte allocation is requested
	ErrZeroSize = errors.New("zero-size allocation")
	// ErrSizeTooLarge is returned when requested size exceeds the arena limit
	ErrSizeTooLarge = errors.New("requested size is too large")
	// ErrNoSpaceAvailable is returned when arena growth fails
	ErrNoSpaceAvailable = errors.New("no space available")
	// ErrInvalidAddress is returned when an operation is given a payload
	// offset that was not produced by Allocate or was already freed
	ErrInvalidAddress = errors.New("invalid address")
)
