package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Akshdhiwar/simpledocs-archive/internals/middleware"
)

func newTokenCmd() *cobra.Command {
	var member string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for a member",
		Long: `Print an access token signed with the configured jwt_secret, for
calling the authenticated endpoints during development. A random member
is used when --member is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("jwt_secret is not configured")
			}

			id := uuid.New()
			if member != "" {
				if id, err = uuid.Parse(member); err != nil {
					return fmt.Errorf("invalid member id %q: %w", member, err)
				}
			}

			auth, err := middleware.NewAuthenticator(cfg.JWTSecret, log)
			if err != nil {
				return err
			}
			token, err := auth.Sign(id, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "member: %s\ntoken:  %s\n", id, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&member, "member", "", "member id (default random)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
