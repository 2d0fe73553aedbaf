package transcode

import "errors"

// Causes carried by types.MalformedValue.
var (
	ErrMissingValue   = errors.New("required value is missing")
	ErrUnexpectedType = errors.New("unexpected value type")
	ErrMalformedDate  = errors.New("malformed date")
)
