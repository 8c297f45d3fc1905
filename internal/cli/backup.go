package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/choreboard/choreboard/internal/server"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore database backups",
	}
	cmd.AddCommand(newBackupRunCommand(rootOpts))
	cmd.AddCommand(newBackupListCommand(rootOpts))
	cmd.AddCommand(newBackupRestoreCommand(rootOpts))
	return cmd
}

func newBackupRunCommand(rootOpts *RootOptions) *cobra.Command {
	var cleanup bool
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Take a backup now",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			mgr, err := server.NewBackupManager(e.db, e.cfg, e.logger)
			if err != nil {
				return err
			}
			b, err := mgr.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d written to %s (%d bytes)\n", b.ID, b.Location, b.SizeBytes)

			if cleanup {
				n, err := mgr.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired backups\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "apply the retention policy afterwards")
	return cmd
}

func newBackupListCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List recorded backups",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			mgr, err := server.NewBackupManager(e.db, e.cfg, e.logger)
			if err != nil {
				return err
			}
			backups, err := mgr.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tSIZE\tFILENAME")
			for _, b := range backups {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
					b.ID, b.Status, b.CreatedAt.UTC().Format("2006-01-02 15:04:05"), b.SizeBytes, b.Filename)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of backups to show")
	return cmd
}

func newBackupRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		id  int64
		out string
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Write a backup's decrypted contents to a file",
		Long: `Fetch a completed backup, decrypt it when needed and write the raw dump.
SQLite backups produce a database file that can replace the live one while
the server is stopped; MySQL backups produce SQL to pipe into the mysql client.

Example:
  choreboard backup restore --id 12 --out restored.db`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			mgr, err := server.NewBackupManager(e.db, e.cfg, e.logger)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := mgr.Restore(cmd.Context(), id, w); err != nil {
				return err
			}
			if out != "" && out != "-" {
				e.logger.Info("backup restored", "id", id, "path", out)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "backup id")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
