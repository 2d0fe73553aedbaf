package app

import "errors"

// Sentinel kinds for run outcomes.
var (
	ErrPartialMigration = errors.New("migration committed with failed tables")
	ErrTableMissing     = errors.New("table not present in source")
	ErrNoSource         = errors.New("no source opener configured")
	ErrNoDestination    = errors.New("no destination opener configured")
)
