package repository

import "errors"

// Sentinel kinds for destination errors.
var (
	ErrTooManyParameters = errors.New("bulk statement exceeds bind parameter limit")
	ErrRowShape          = errors.New("row does not match table columns")
	ErrClosed            = errors.New("store closed")
)
