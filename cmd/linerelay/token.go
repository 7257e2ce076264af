package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linerelay/linerelay/internal/auth"
	"github.com/linerelay/linerelay/internal/config"
)

var (
	tokenSubject   string
	tokenExpiresIn time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the download API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		expiresIn := tokenExpiresIn
		if expiresIn <= 0 {
			expiresIn = cfg.Auth.ExpiresIn()
		}
		token, expiresAt, err := auth.GenerateToken(tokenSubject, cfg.Auth.JWTSecret, expiresIn, auth.ScopeDownloads)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenExpiresIn, "expires-in", 0, "Token lifetime (default auth.jwt_expires_in)")
	rootCmd.AddCommand(tokenCmd)
}
