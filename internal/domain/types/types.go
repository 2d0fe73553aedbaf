// Package types contains common types used across the application
package types

// Side identifies one of the two stores taking part in a migration.
type Side int

// Store sides.
const (
	SideSource Side = iota
	SideDestination
)

func (s Side) String() string {
	switch s {
	case SideSource:
		return "source"
	case SideDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// RowRange is a half-open range [From, To) of 1-based row positions within one
// table's stream.
type RowRange struct {
	From int64
	To   int64
}

// Len returns the number of rows covered by the range.
func (r RowRange) Len() int64 { return r.To - r.From }
