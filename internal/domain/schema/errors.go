package schema

import "errors"

// Sentinel errors for registry construction.
var (
	ErrEmptyRegistry    = errors.New("schema: registry has no tables")
	ErrDuplicateTable   = errors.New("schema: duplicate table")
	ErrUnknownReference = errors.New("schema: reference to an unregistered table")
	ErrReferenceCycle   = errors.New("schema: reference cycle between tables")
)
