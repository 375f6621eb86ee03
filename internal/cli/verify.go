package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the API token is accepted by Cloudflare",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.cfg.RequireToken()
			if err != nil {
				return err
			}
			status, err := a.newProvider(a.metrics).Verify(cmd.Context(), token)
			if err != nil {
				return err
			}
			slog.Debug("Token verified", "status", status)
			fmt.Fprintf(a.out, "Token is %s\n", status)
			return nil
		},
	}
}
