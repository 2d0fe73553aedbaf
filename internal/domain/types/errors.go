package types

import (
	"errors"
	"fmt"
	"strings"
)

// ConnectionFailed reports that one of the stores could not be opened.
type ConnectionFailed struct {
	Side  Side
	Cause error
}

func (e *ConnectionFailed) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Side, e.Cause)
}

func (e *ConnectionFailed) Unwrap() error { return e.Cause }

// SourceQueryFailed reports that a table scan on the source store failed.
type SourceQueryFailed struct {
	Table string
	Cause error
}

func (e *SourceQueryFailed) Error() string {
	return fmt.Sprintf("source query on %q failed: %v", e.Table, e.Cause)
}

func (e *SourceQueryFailed) Unwrap() error { return e.Cause }

// WriteFailed reports that the destination rejected one flushed batch.
type WriteFailed struct {
	Table string
	Range RowRange
	Cause error
}

func (e *WriteFailed) Error() string {
	return fmt.Sprintf("write to %q rows [%d,%d) failed: %v", e.Table, e.Range.From, e.Range.To, e.Cause)
}

func (e *WriteFailed) Unwrap() error { return e.Cause }

// TransactionFailed reports that a transaction control statement was
// rejected by the destination.
type TransactionFailed struct {
	Op    string
	Cause error
}

func (e *TransactionFailed) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Cause)
}

func (e *TransactionFailed) Unwrap() error { return e.Cause }

// MalformedTimestamp reports a timestamp that could not be parsed.
type MalformedTimestamp struct {
	Table string
	Field string
	Raw   any
	ID    string
}

func (e *MalformedTimestamp) Error() string {
	return fmt.Sprintf("%s: malformed timestamp in %q: %v%s", e.Table, e.Field, e.Raw, rowSuffix(e.ID))
}

// InvalidEnumValue reports a value outside of a field's enum domain.
type InvalidEnumValue struct {
	Table string
	Field string
	Raw   any
	ID    string
}

func (e *InvalidEnumValue) Error() string {
	return fmt.Sprintf("%s: invalid value for %q: %v%s", e.Table, e.Field, e.Raw, rowSuffix(e.ID))
}

// OutOfRangeValue reports a numeric value outside of a field's range.
type OutOfRangeValue struct {
	Table string
	Field string
	Raw   any
	ID    string
}

func (e *OutOfRangeValue) Error() string {
	return fmt.Sprintf("%s: value out of range for %q: %v%s", e.Table, e.Field, e.Raw, rowSuffix(e.ID))
}

// MalformedValue reports a missing required value or one whose type cannot be
// converted to the field kind.
type MalformedValue struct {
	Table string
	Field string
	Raw   any
	ID    string
	Cause error
}

func (e *MalformedValue) Error() string {
	return fmt.Sprintf("%s: malformed value for %q: %v%s: %v", e.Table, e.Field, e.Raw, rowSuffix(e.ID), e.Cause)
}

func (e *MalformedValue) Unwrap() error { return e.Cause }

// UnknownTableKind reports a table name the registry does not know.
type UnknownTableKind struct {
	Table string
}

func (e *UnknownTableKind) Error() string {
	return fmt.Sprintf("unknown table kind %q", e.Table)
}

// RowCountMismatch reports differing cardinalities between the stores.
type RowCountMismatch struct {
	Table    string
	Expected int
	Actual   int
}

func (e *RowCountMismatch) Error() string {
	return fmt.Sprintf("%s: row count mismatch: expected %d, got %d", e.Table, e.Expected, e.Actual)
}

// RecordMismatch reports the first diverging field of one record.
type RecordMismatch struct {
	Table    string
	Identity string
	Field    string
	Expected any
	Actual   any
}

func (e *RecordMismatch) Error() string {
	return fmt.Sprintf("%s: record %s differs in %q: expected %v, got %v",
		e.Table, e.Identity, e.Field, e.Expected, e.Actual)
}

// VerificationFailed aggregates every failure found by one verification run.
type VerificationFailed struct {
	Failures []error
}

func (e *VerificationFailed) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("verification failed with %d failure(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *VerificationFailed) Unwrap() []error { return e.Failures }

// IsMalformedRow reports whether err stems from a row that failed validation.
func IsMalformedRow(err error) bool {
	var (
		ts  *MalformedTimestamp
		en  *InvalidEnumValue
		rng *OutOfRangeValue
		mv  *MalformedValue
		ut  *UnknownTableKind
	)
	return errors.As(err, &ts) || errors.As(err, &en) || errors.As(err, &rng) ||
		errors.As(err, &mv) || errors.As(err, &ut)
}

// IsRunFatal reports whether err must abort a whole migration run.
func IsRunFatal(err error) bool {
	var (
		cf *ConnectionFailed
		wf *WriteFailed
		tf *TransactionFailed
	)
	return errors.As(err, &cf) || errors.As(err, &wf) || errors.As(err, &tf)
}

func rowSuffix(id string) string {
	if id == "" {
		return ""
	}
	return " (row " + id + ")"
}
