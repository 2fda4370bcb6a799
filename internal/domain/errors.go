package domain

import "errors"

var (
	// ErrMalformedRecord marks a station export that could not be parsed:
	// missing data section, too few fields, or an unparsable value.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMatrixFrozen is returned when recording into a matrix after Freeze.
	ErrMatrixFrozen = errors.New("matrix is frozen")
)
