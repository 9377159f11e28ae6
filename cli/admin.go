package cli

import (
	"errors"
	"fmt"
	"strings"

	"newsletter-backend/apperror"
	"newsletter-backend/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewAdminCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
	}
	cmd.AddCommand(newAdminCreateCommand(opts))
	return cmd
}

func newAdminCreateCommand(opts *RootOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user allowed to publish issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}

			rt, err := newEnvironment(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			user := models.User{Username: username}
			if err := user.SetPassword(password); err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if err := rt.db.WithContext(cmd.Context()).Create(&user).Error; err != nil {
				return apperror.Storage("create admin user", err)
			}

			rt.logger.Info("admin user created", zap.String("user_id", user.Id), zap.String("username", user.Username))
			fmt.Fprintln(cmd.OutOrStdout(), user.Id)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password (stored as a bcrypt hash)")

	return cmd
}
