package cli

import (
	"context"
	"errors"

	"github.com/okian/filmport/internal/app"
	"github.com/okian/filmport/internal/config"
	"github.com/okian/filmport/internal/domain/types"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitUnknown      = 1
	ExitUsage        = 2
	ExitSource       = 10
	ExitDestination  = 11
	ExitVerification = 12
	ExitInterrupted  = 130
)

// ExitCode classifies err into a process exit code. Interruption wins over
// everything else; a destination failure wins over a source one because it
// stops the whole run.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cf *types.ConnectionFailed
		wf *types.WriteFailed
		tf *types.TransactionFailed
		sq *types.SourceQueryFailed
	)

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrLoadConfig):
		return ExitUsage
	case app.IsVerificationFailure(err):
		return ExitVerification
	case errors.As(err, &cf) && cf.Side == types.SideDestination,
		errors.As(err, &wf),
		errors.As(err, &tf),
		errors.Is(err, app.ErrNoDestination):
		return ExitDestination
	case errors.As(err, &cf),
		errors.As(err, &sq),
		errors.Is(err, app.ErrPartialMigration),
		errors.Is(err, app.ErrNoSource),
		types.IsMalformedRow(err):
		return ExitSource
	default:
		return ExitUnknown
	}
}

// Outcome names an exit code for the run outcome metric.
func Outcome(code int) string {
	switch code {
	case ExitOK:
		return "success"
	case ExitUsage:
		return "usage"
	case ExitSource:
		return "source_failure"
	case ExitDestination:
		return "destination_failure"
	case ExitVerification:
		return "verification_failure"
	case ExitInterrupted:
		return "interrupted"
	default:
		return "error"
	}
}
