package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/shopfloor/backend/internal/app"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var role, token string

	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign an operator in on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				u, err := a.Repos.Users.Login(ctx, args[0], models.Role(role), token)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(u, func(w io.Writer) {
					fmt.Fprintf(w, "signed in as %s (%s)\n", u.Email, u.Role)
				})
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleOperator), "operator or supervisor")
	cmd.Flags().StringVar(&token, "token", "", "session token issued by the plant backend (required)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign the current operator out",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Repos.Users.Logout(ctx); err != nil {
					return err
				}
				return rootOpts.out(cmd).success(nil, func(w io.Writer) {
					fmt.Fprintln(w, "signed out")
				})
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				u, err := a.Repos.Users.Current(ctx)
				if err != nil {
					return err
				}
				return rootOpts.out(cmd).success(u, func(w io.Writer) {
					fmt.Fprintf(w, "%s (%s) tenant %s\n", u.Email, u.Role, u.TenantID)
				})
			})
		},
	}
}
