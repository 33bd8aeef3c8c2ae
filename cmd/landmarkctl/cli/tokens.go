package cli

import (
	"fmt"

	"github.com/BradenHooton/landmark/internal/background"
	"github.com/spf13/cobra"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Refresh-token housekeeping",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired refresh tokens now",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			n := background.NewCleanupManager(e.tokens, e.logger, 0).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired refresh tokens\n", n)
			return nil
		},
	})

	cmd.AddCommand(newRevokeCmd())

	return cmd
}

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke EMAIL",
		Short: "Sign an admin out everywhere by deleting all their refresh tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			admin, err := e.admins.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("no admin with email %q: %w", args[0], err)
			}
			n, err := e.tokens.DeleteAllForAdmin(cmd.Context(), admin.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d refresh tokens for %s\n", n, admin.Email)
			return nil
		},
	}
}
