package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/partimages/backend/pkg/jwt"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issues an access token for the write endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AuthJWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is not set")
		}
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := jwt.GenerateToken(subject, jwt.AccessToken, cfg.AuthJWTSecret, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringP("subject", "s", "operator", "Token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}
