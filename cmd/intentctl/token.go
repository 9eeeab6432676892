package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/intentflow/auth/jwt"
)

func tokenCmd() *cobra.Command {
	var (
		secret string
		issuer string
		scopes []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for the intentd API",
		Long: `Mint an HMAC-signed bearer token. The secret defaults to INTENTD_AUTH_SECRET
and must match the server's auth.secret.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("INTENTD_AUTH_SECRET")
			}
			cfg := jwt.Config{Enabled: true, Secret: secret, Issuer: issuer, TokenTTL: ttl}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			v, err := jwt.NewValidator(cfg)
			if err != nil {
				return err
			}
			token, err := v.Issue(args[0], scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (default $INTENTD_AUTH_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Issuer claim")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{jwt.ScopeRead, jwt.ScopeExecute}, "Granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
