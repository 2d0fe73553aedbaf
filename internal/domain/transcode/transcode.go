// Package transcode converts raw store rows into canonical records and back.
//
// The transcoder is the single validation boundary of the pipeline: it applies
// the registry's rename rules, parses timestamps and dates, checks enum domains
// and numeric ranges. It is pure; the same raw row always yields the same record.
package transcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/filmport/internal/domain/record"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/internal/domain/types"
)

// Layouts accepted for timestamps. The first is the source store's textual
// format, e.g. 2021-06-16 20:14:09.221838+00.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

const dateLayout = "2006-01-02"

// dateTimeLayouts are accepted for date fields in addition to the timestamp
// layouts. The time part is dropped and the date is kept as written.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Row is an unordered mapping of column name to driver-native value.
type Row = map[string]any

// Transcoder converts rows for the tables of one registry.
type Transcoder struct {
	registry *schema.Registry
}

// New returns a transcoder bound to the registry.
func New(registry *schema.Registry) *Transcoder {
	return &Transcoder{registry: registry}
}

// Decode converts a raw row read from side into a canonical record of table.
func (t *Transcoder) Decode(table string, side types.Side, raw Row) (record.Record, error) {
	tbl, err := t.registry.Lookup(table)
	if err != nil {
		return record.Record{}, err
	}
	return decodeTable(tbl, side, raw)
}

func decodeTable(tbl *schema.Table, side types.Side, raw Row) (record.Record, error) {
	rowID := identityHint(tbl, side, raw)
	values := make([]any, len(tbl.Fields))
	for i, f := range tbl.Fields {
		v, err := decodeField(tbl.Name, f, raw[f.Column(side)], rowID)
		if err != nil {
			return record.Record{}, err
		}
		values[i] = v
	}
	id, _ := values[tbl.FieldIndex(tbl.Identity)].(uuid.UUID)
	return record.Record{Table: tbl, ID: id, Values: values}, nil
}

// Encode renders rec as positional values for side's column order.
// UUIDs are rendered as their canonical string form.
func (t *Transcoder) Encode(rec record.Record) ([]any, error) {
	if rec.Table == nil || len(rec.Values) != len(rec.Table.Fields) {
		return nil, errors.New("transcode: record does not match its table shape")
	}
	out := make([]any, len(rec.Values))
	for i, v := range rec.Values {
		switch val := v.(type) {
		case uuid.UUID:
			out[i] = val.String()
		default:
			out[i] = val
		}
	}
	return out, nil
}

// EncodeRow renders rec as a native row keyed by side's column names.
func (t *Transcoder) EncodeRow(rec record.Record, side types.Side) (Row, error) {
	vals, err := t.Encode(rec)
	if err != nil {
		return nil, err
	}
	row := make(Row, len(vals))
	for i, f := range rec.Table.Fields {
		row[f.Column(side)] = vals[i]
	}
	return row, nil
}

func decodeField(table string, f schema.Field, raw any, rowID string) (any, error) {
	if isNull(raw) {
		if f.Nullable {
			return nil, nil
		}
		if f.Kind == schema.KindTimestamp {
			return nil, &types.MalformedTimestamp{Table: table, Field: f.Name, Raw: raw, ID: rowID}
		}
		return nil, &types.MalformedValue{Table: table, Field: f.Name, Raw: raw, ID: rowID, Cause: ErrMissingValue}
	}

	malformed := func(cause error) error {
		return &types.MalformedValue{Table: table, Field: f.Name, Raw: raw, ID: rowID, Cause: cause}
	}

	switch f.Kind {
	case schema.KindUUID:
		id, err := parseUUID(raw)
		if err != nil {
			return nil, malformed(err)
		}
		return id, nil

	case schema.KindText:
		s, ok := asString(raw)
		if !ok {
			return nil, malformed(fmt.Errorf("%w: %T", ErrUnexpectedType, raw))
		}
		return s, nil

	case schema.KindEnum:
		s, ok := asString(raw)
		if !ok || !f.Allows(s) {
			return nil, &types.InvalidEnumValue{Table: table, Field: f.Name, Raw: raw, ID: rowID}
		}
		return s, nil

	case schema.KindFloat:
		v, err := parseFloat(raw)
		if err != nil {
			return nil, malformed(err)
		}
		if f.Range != nil && !f.Range.Contains(v) {
			return nil, &types.OutOfRangeValue{Table: table, Field: f.Name, Raw: raw, ID: rowID}
		}
		return v, nil

	case schema.KindTimestamp:
		ts, ok := parseTimestamp(raw)
		if !ok {
			return nil, &types.MalformedTimestamp{Table: table, Field: f.Name, Raw: raw, ID: rowID}
		}
		return ts, nil

	case schema.KindDate:
		d, ok := parseDate(raw)
		if !ok {
			return nil, malformed(ErrMalformedDate)
		}
		return d, nil

	default:
		return nil, malformed(fmt.Errorf("unsupported kind %s", f.Kind))
	}
}

// identityHint extracts the raw identity for error context without validating it.
func identityHint(tbl *schema.Table, side types.Side, raw Row) string {
	i := tbl.FieldIndex(tbl.Identity)
	v := raw[tbl.Fields[i].Column(side)]
	if id, err := parseUUID(v); err == nil {
		return id.String()
	}
	if s, ok := asString(v); ok {
		return s
	}
	return ""
}

func isNull(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []byte:
		return val == nil
	default:
		return false
	}
}

func asString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	default:
		return "", false
	}
}

func parseUUID(v any) (uuid.UUID, error) {
	switch val := v.(type) {
	case uuid.UUID:
		return val, nil
	case [16]byte:
		return uuid.UUID(val), nil
	case string:
		return uuid.Parse(val)
	case []byte:
		if len(val) == 16 {
			return uuid.FromBytes(val)
		}
		return uuid.ParseBytes(val)
	default:
		return uuid.Nil, fmt.Errorf("%w: %T", ErrUnexpectedType, v)
	}
}

func parseFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnexpectedType, v)
	}
}

func parseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return normalizeInstant(val), true
	case string, []byte:
		s, _ := asString(val)
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return normalizeInstant(ts), true
			}
		}
	}
	return time.Time{}, false
}

func parseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		y, m, d := val.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	case string, []byte:
		s, _ := asString(val)
		s = strings.TrimSpace(s)
		if d, err := time.Parse(dateLayout, s); err == nil {
			return d, true
		}
		for _, layout := range append(dateTimeLayouts, timestampLayouts...) {
			if ts, err := time.Parse(layout, s); err == nil {
				y, m, d := ts.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

func normalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
