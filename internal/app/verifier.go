package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/filmport/internal/adapters/repository"
	"github.com/okian/filmport/internal/domain/record"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/internal/domain/transcode"
	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
)

// TableVerdict is the verification result of one table.
type TableVerdict struct {
	Table           string
	SourceRows      int
	DestinationRows int
	Failures        []error
}

// OK reports whether the table matched.
func (v TableVerdict) OK() bool { return len(v.Failures) == 0 }

// VerifyReport collects the verdict of every table.
type VerifyReport struct {
	Tables   []TableVerdict
	Duration time.Duration
}

// Failures returns every failure of every table in registry order.
func (r *VerifyReport) Failures() []error {
	var out []error
	for _, t := range r.Tables {
		out = append(out, t.Failures...)
	}
	return out
}

// Verifier compares the source and destination stores table by table. It
// only reads from both stores.
type Verifier struct {
	settings
	transcoder *transcode.Transcoder
}

// NewVerifier constructs a Verifier over registry.
func NewVerifier(registry *schema.Registry, opts ...Option) *Verifier {
	return &Verifier{
		settings:   newSettings(registry, "verifier", opts),
		transcoder: transcode.New(registry),
	}
}

// Verify checks every registry table. A table reports its row count
// mismatch and its first diverging record, then verification moves on to
// the next table. When anything diverged the error is a VerificationFailed
// holding every failure.
func (v *Verifier) Verify(ctx context.Context) (*VerifyReport, error) {
	start := time.Now()
	report := &VerifyReport{}
	defer func() { report.Duration = time.Since(start) }()

	if v.openSource == nil {
		return report, ErrNoSource
	}
	if v.openDest == nil {
		return report, ErrNoDestination
	}

	v.logger.Info(ctx, "verification started", logger.Any("tables", v.registry.Names()))

	src, err := v.openSource(ctx)
	if err != nil {
		return report, err
	}
	defer v.closeSource(ctx, src)

	dst, err := v.openDest(ctx)
	if err != nil {
		return report, err
	}
	defer v.closeDestination(ctx, dst)

	for _, tbl := range v.registry.Order() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		verdict := v.verifyTable(ctx, src, dst, tbl)
		report.Tables = append(report.Tables, verdict)
		if verdict.OK() {
			v.logger.Info(ctx, "table verified",
				logger.String("table", tbl.Name),
				logger.Int("rows", verdict.SourceRows),
			)
			continue
		}
		for _, f := range verdict.Failures {
			v.logger.Warn(ctx, "table diverges", logger.String("table", tbl.Name), logger.Error(f))
		}
	}

	if failures := report.Failures(); len(failures) > 0 {
		return report, &types.VerificationFailed{Failures: failures}
	}
	v.logger.Info(ctx, "verification passed", logger.Int("tables", len(report.Tables)))
	return report, nil
}

func (v *Verifier) verifyTable(ctx context.Context, src SourceStore, dst repository.Store, tbl *schema.Table) TableVerdict {
	verdict := TableVerdict{Table: tbl.Name}
	fail := func(kind string, err error) TableVerdict {
		metrics.RecordVerificationFailure(tbl.Name, kind)
		verdict.Failures = append(verdict.Failures, err)
		return verdict
	}

	expected := make(map[uuid.UUID]record.Record)
	for raw, err := range src.Rows(ctx, tbl.Name) {
		if err != nil {
			return fail("read", err)
		}
		rec, err := v.transcoder.Decode(tbl.Name, types.SideSource, raw)
		if err != nil {
			return fail("transcode", err)
		}
		expected[rec.ID] = rec
		verdict.SourceRows++
	}

	var actual []record.Record
	for raw, err := range dst.Rows(ctx, tbl) {
		if err != nil {
			return fail("read", fmt.Errorf("%s: destination read: %w", tbl.Name, err))
		}
		rec, err := v.transcoder.Decode(tbl.Name, types.SideDestination, raw)
		if err != nil {
			return fail("transcode", err)
		}
		actual = append(actual, rec)
	}
	verdict.DestinationRows = len(actual)

	if verdict.SourceRows != verdict.DestinationRows {
		verdict = fail("row_count", &types.RowCountMismatch{
			Table:    tbl.Name,
			Expected: verdict.SourceRows,
			Actual:   verdict.DestinationRows,
		})
	}

	// Stable order so the first divergence is reproducible.
	sort.Slice(actual, func(i, j int) bool { return actual[i].ID.String() < actual[j].ID.String() })
	for _, got := range actual {
		want, ok := expected[got.ID]
		if !ok {
			return fail("record", &types.RecordMismatch{
				Table:    tbl.Name,
				Identity: got.ID.String(),
				Field:    tbl.Identity,
				Expected: nil,
				Actual:   got.ID,
			})
		}
		if field, exp, act, differs := want.Diff(got); differs {
			return fail("record", &types.RecordMismatch{
				Table:    tbl.Name,
				Identity: got.ID.String(),
				Field:    field,
				Expected: exp,
				Actual:   act,
			})
		}
	}
	return verdict
}

// IsVerificationFailure reports whether err came out of a completed verification.
func IsVerificationFailure(err error) bool {
	var vf *types.VerificationFailed
	return errors.As(err, &vf)
}
