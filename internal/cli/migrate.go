package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choreboard/choreboard/internal/database"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply pending database migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, true)
			if err != nil {
				return err
			}
			defer e.Close()
			return printVersion(cmd, e)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "version",
		Short:        "Print the current schema version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()
			return printVersion(cmd, e)
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, e *env) error {
	v, err := database.MigrationVersion(e.db, e.cfg.Database.Driver)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, e.cfg.Database.Driver)
	return nil
}
