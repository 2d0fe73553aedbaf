// Package record contains the canonical record passed between the transcoder,
// the batch writer and the verifier.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/filmport/internal/domain/schema"
)

// Record is one validated row in canonical form. Values are aligned with the
// table's field list and hold only uuid.UUID, string, float64, time.Time or nil.
// Records are built by the transcoder; other packages treat them as read-only.
type Record struct {
	Table  *schema.Table
	ID     uuid.UUID
	Values []any
}

// Get returns the value of the canonical field name.
func (r Record) Get(name string) (any, bool) {
	i := r.Table.FieldIndex(name)
	if i < 0 {
		return nil, false
	}
	return r.Values[i], true
}

// Diff returns the first field, in field order, on which the records disagree.
// ok is false when the records are equal.
func (r Record) Diff(other Record) (field string, expected, actual any, ok bool) {
	for i, f := range r.Table.Fields {
		var a, b any = r.Values[i], nil
		if i < len(other.Values) {
			b = other.Values[i]
		}
		if !equalValue(a, b) {
			return f.Name, a, b, true
		}
	}
	return "", nil, nil, false
}

// Equal reports whether both records carry the same values.
func (r Record) Equal(other Record) bool {
	_, _, _, differ := r.Diff(other)
	return !differ
}

func (r Record) String() string {
	return fmt.Sprintf("%s(%s)", r.Table.Name, r.ID)
}

// Timestamps compare at microsecond precision, the finest both stores keep.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Truncate(time.Microsecond).Equal(bv.Truncate(time.Microsecond))
	case uuid.UUID:
		bv, ok := b.(uuid.UUID)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	default:
		return false
	}
}
