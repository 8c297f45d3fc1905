package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/choreboard/choreboard/internal/notify"
	"github.com/choreboard/choreboard/internal/recurring"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	FamilyID    int64
	RecurringID int64
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate due recurring chores once",
		Long: `Materialize every due recurring chore template, then exit. The result
is printed as JSON.

Example:
  choreboard generate
  choreboard generate --family 3 --recurring 12`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(opts.RootOptions, true)
			if err != nil {
				return err
			}
			defer e.Close()

			// In-app notifications only; the live channels belong to the server.
			dispatcher := notify.NewDispatcher(e.db, notify.Options{BaseURL: e.cfg.BaseURL}, e.logger)
			gen := recurring.NewGenerator(e.db, dispatcher, e.cfg.Location(), e.logger)

			start := time.Now()
			res, err := gen.Run(cmd.Context(), recurring.Options{FamilyID: opts.FamilyID, RecurringID: opts.RecurringID})
			if err != nil {
				return err
			}
			e.logger.Info("generation finished", "generated", len(res.Generated), "skipped", res.Skipped,
				"failed", len(res.Failed), "duration", time.Since(start))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().Int64Var(&opts.FamilyID, "family", 0, "limit generation to one family")
	cmd.Flags().Int64Var(&opts.RecurringID, "recurring", 0, "generate one template regardless of its due date")

	return cmd
}
