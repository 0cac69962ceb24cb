package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"jaco-backend/internal/middleware"
)

// NewTokenCommand mints a bearer token for local development against a server
// that shares the same JWT secret.
func NewTokenCommand() *cobra.Command {
	var (
		secret string
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("a signing secret is required (--secret or JWT_SECRET)")
			}

			uid := uuid.New()
			if userID != "" {
				var err error
				if uid, err = parseID(userID, "user"); err != nil {
					return err
				}
			}

			tok, err := middleware.NewJWTAuth(secret).IssueToken(uid, ttl)
			if err != nil {
				return errors.Wrap(err, "issue token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&userID, "user", "", "User id to embed (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
