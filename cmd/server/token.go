package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkeye/Relay/internal/adapters/auth"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
)

// tokenCmd mints a development token signed with the configured secret.
func tokenCmd() *cobra.Command {
	var (
		first, last string
		expiry      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print a signed identity token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			user, err := domain.NewUser(args[0], first, last)
			if err != nil {
				return err
			}
			if expiry == 0 {
				expiry = cfg.Auth.TokenExpiry
			}
			token, err := auth.NewJWTService(cfg.Auth.JWTSecret, expiry).Generate(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&first, "first-name", "", "first name claim")
	cmd.Flags().StringVar(&last, "last-name", "", "last name claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (defaults to auth.token_expiry)")
	return cmd
}
