package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choreboard/choreboard/internal/push"
)

// NewVAPIDCommand creates the vapid command, which prints a fresh key pair
// for web push.
func NewVAPIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "vapid",
		Short:        "Generate a VAPID key pair for web push",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CHOREBOARD_VAPID_PUBLIC_KEY=%s\nCHOREBOARD_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}
