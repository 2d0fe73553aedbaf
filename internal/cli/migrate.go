package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/okian/filmport/internal/adapters/http/api"
	"github.com/okian/filmport/internal/app"
	"github.com/okian/filmport/pkg/logger"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	Verify bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every table from SQLite into PostgreSQL",
		Long: `Copy every table from SQLite into PostgreSQL.

Tables are written parents first, each inside its own savepoint, and the
destination commits once at the end. Rows already present are skipped, so
running migrate again is safe. A table with a malformed row is rolled back
while the others still commit.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runMigrate(cmd.Context(), cmd, rootOpts, opts)
			recordOutcome(cmd.Name(), err)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify both stores after a successful commit")

	return cmd
}

func runMigrate(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions, opts *MigrateOptions) error {
	rt, err := setup(ctx, cmd, rootOpts)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.phase(api.PhaseMigrating)
	report, err := app.NewMigrator(rt.registry, append(rt.appOptions(), app.WithLogger(logger.Named("migrator")))...).Run(ctx)
	if report != nil {
		printMigrateReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		rt.logger.Error(ctx, "migration failed", logger.Error(err))
		return err
	}

	if opts.Verify {
		rt.phase(api.PhaseVerifying)
		if err := verify(ctx, cmd, rt); err != nil {
			return err
		}
	}

	rt.phase(api.PhaseDone)
	rt.logger.Info(ctx, "migration finished", logger.Duration("elapsed", report.Duration))
	return nil
}
