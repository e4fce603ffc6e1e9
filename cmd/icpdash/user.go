package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-icp-dashboard/internal/services"
)

func newUserCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard accounts",
	}
	cmd.AddCommand(newUserCreateCmd(root))
	return cmd
}

func newUserCreateCmd(root *rootOptions) *cobra.Command {
	var password, website string
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.openDB()
			if err != nil {
				return err
			}
			auth := &services.AuthService{DB: db}
			u, err := auth.CreateUser(cmd.Context(), args[0], password, website)
			if errors.Is(err, services.ErrUserExists) {
				return fmt.Errorf("user %q already exists", args[0])
			}
			if err != nil {
				return err
			}
			log.Info().Str("username", u.Username).Str("website", u.WebsiteURL).Msg("user created")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&website, "website", "", "company website URL")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
