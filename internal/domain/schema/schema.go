// Package schema holds the record schema registry: the fixed mapping from a
// table name to its canonical record shape and per-field parse rules.
//
// The registry is data. Adding a table means adding a Table value, not a new
// code path; the processing order is derived from the declared references.
package schema

import (
	"errors"
	"fmt"

	"github.com/okian/filmport/internal/domain/types"
)

// Kind is the canonical type of a field.
type Kind int

// Field kinds.
const (
	KindUUID Kind = iota
	KindText
	KindTimestamp
	KindDate
	KindFloat
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindUUID:
		return "uuid"
	case KindText:
		return "text"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Range bounds a numeric field, inclusive on both ends.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Field describes one canonical field and how each store names it.
type Field struct {
	// Name is the canonical field name.
	Name string
	// Source and Dest are the column names in the source and destination stores.
	Source string
	Dest   string

	Kind     Kind
	Nullable bool
	// Enum is the allowed domain for KindEnum fields.
	Enum []string
	// Range optionally bounds KindFloat fields.
	Range *Range
	// References names the parent table of a foreign key field.
	References string
}

// Column returns the column name of the field on the given side.
func (f Field) Column(side types.Side) string {
	if side == types.SideDestination {
		return f.Dest
	}
	return f.Source
}

// Allows reports whether v belongs to the enum domain.
func (f Field) Allows(v string) bool {
	for _, e := range f.Enum {
		if e == v {
			return true
		}
	}
	return false
}

// Table is the canonical shape of one migrated table.
type Table struct {
	Name string
	// Identity is the canonical name of the identity field.
	Identity string
	// Fields are ordered; the order is used for positional binding.
	Fields []Field
	// Unique lists natural uniqueness keys by canonical field names.
	Unique [][]string
}

// Columns returns the column names of every field on the given side, in field order.
func (t *Table) Columns(side types.Side) []string {
	cols := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		cols[i] = f.Column(side)
	}
	return cols
}

// FieldIndex returns the position of the canonical field name, or -1.
func (t *Table) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Parents returns the distinct tables referenced by this table's fields.
func (t *Table) Parents() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range t.Fields {
		if f.References == "" || f.References == t.Name || seen[f.References] {
			continue
		}
		seen[f.References] = true
		out = append(out, f.References)
	}
	return out
}

// Registry maps table names to canonical shapes.
type Registry struct {
	tables map[string]*Table
	order  []*Table
}

// New builds a registry from the given tables and derives the processing order.
// Parents always precede their children; ties keep declaration order.
func New(tables ...Table) (*Registry, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{tables: make(map[string]*Table, len(tables))}
	declared := make([]*Table, 0, len(tables))
	for i := range tables {
		t := tables[i]
		if err := validateTable(&t); err != nil {
			return nil, err
		}
		if _, dup := r.tables[t.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, t.Name)
		}
		r.tables[t.Name] = &t
		declared = append(declared, &t)
	}

	order, err := topoOrder(declared, r.tables)
	if err != nil {
		return nil, err
	}
	r.order = order
	return r, nil
}

// MustNew is like New but panics on an invalid declaration.
func MustNew(tables ...Table) *Registry {
	r, err := New(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the table registered under name.
func (r *Registry) Lookup(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, &types.UnknownTableKind{Table: name}
	}
	return t, nil
}

// Order returns every table, parents before children.
func (r *Registry) Order() []*Table {
	out := make([]*Table, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the table names in processing order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, t := range r.order {
		out[i] = t.Name
	}
	return out
}

// MaxFieldCount returns the field count of the widest table.
func (r *Registry) MaxFieldCount() int {
	max := 0
	for _, t := range r.order {
		if len(t.Fields) > max {
			max = len(t.Fields)
		}
	}
	return max
}

func validateTable(t *Table) error {
	if t.Name == "" {
		return errors.New("schema: table without a name")
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("schema: table %q has no fields", t.Name)
	}
	names := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" || f.Source == "" || f.Dest == "" {
			return fmt.Errorf("schema: table %q has a field with an empty name or column", t.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("schema: table %q declares field %q twice", t.Name, f.Name)
		}
		names[f.Name] = true
		if f.Kind == KindEnum && len(f.Enum) == 0 {
			return fmt.Errorf("schema: enum field %s.%s has an empty domain", t.Name, f.Name)
		}
	}
	id := t.FieldIndex(t.Identity)
	if id < 0 {
		return fmt.Errorf("schema: table %q identity %q is not a field", t.Name, t.Identity)
	}
	if t.Fields[id].Kind != KindUUID || t.Fields[id].Nullable {
		return fmt.Errorf("schema: table %q identity must be a non-null uuid", t.Name)
	}
	for _, key := range t.Unique {
		for _, name := range key {
			if !names[name] {
				return fmt.Errorf("schema: table %q unique key uses unknown field %q", t.Name, name)
			}
		}
	}
	return nil
}

// topoOrder is Kahn's algorithm with declaration order as the tiebreak.
func topoOrder(declared []*Table, byName map[string]*Table) ([]*Table, error) {
	pending := make(map[string]int, len(declared))
	children := make(map[string][]string, len(declared))
	for _, t := range declared {
		parents := t.Parents()
		for _, p := range parents {
			if _, ok := byName[p]; !ok {
				return nil, fmt.Errorf("%w: %q references %q", ErrUnknownReference, t.Name, p)
			}
			children[p] = append(children[p], t.Name)
		}
		pending[t.Name] = len(parents)
	}

	order := make([]*Table, 0, len(declared))
	done := make(map[string]bool, len(declared))
	for len(order) < len(declared) {
		progressed := false
		for _, t := range declared {
			if done[t.Name] || pending[t.Name] > 0 {
				continue
			}
			done[t.Name] = true
			order = append(order, t)
			for _, c := range children[t.Name] {
				pending[c]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, ErrReferenceCycle
		}
	}
	return order, nil
}
