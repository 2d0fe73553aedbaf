package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/okian/filmport/internal/adapters/http/api"
	"github.com/okian/filmport/internal/app"
	"github.com/okian/filmport/pkg/logger"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that PostgreSQL holds the same records as SQLite",
		Long: `Check that PostgreSQL holds the same records as SQLite.

Both stores are only read. For every table the row counts are compared and
records are matched by identity, field by field. Every diverging table is
reported before the command fails.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runVerify(cmd.Context(), cmd, rootOpts)
			recordOutcome(cmd.Name(), err)
			return err
		},
	}

	return cmd
}

func runVerify(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions) error {
	rt, err := setup(ctx, cmd, rootOpts)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.phase(api.PhaseVerifying)
	if err := verify(ctx, cmd, rt); err != nil {
		return err
	}
	rt.phase(api.PhaseDone)
	return nil
}

// verify runs the consistency check and prints its verdicts.
func verify(ctx context.Context, cmd *cobra.Command, rt *session) error {
	report, err := app.NewVerifier(rt.registry, append(rt.appOptions(), app.WithLogger(logger.Named("verifier")))...).Verify(ctx)
	if report != nil {
		printVerifyReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		rt.logger.Error(ctx, "verification failed", logger.Error(err))
		return err
	}
	rt.logger.Info(ctx, "stores match", logger.Duration("elapsed", report.Duration))
	return nil
}
