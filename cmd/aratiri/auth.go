package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hongminglow/aratiri-client/internal/app"
	"github.com/hongminglow/aratiri-client/internal/models/dto"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in with username or email and password",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			}
			username, err := prompt(cmd, "Username", username)
			if err != nil {
				return err
			}
			password, _ := cmd.Flags().GetString("password")
			if password, err = prompt(cmd, "Password", password); err != nil {
				return err
			}
			if err := a.Wallet.Login(ctx, username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		}),
	}
	cmd.Flags().StringP("password", "p", "", "Password (prompted when omitted)")
	return cmd
}

func googleLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login-google",
		Short: "Log in with a Google identity token read from stdin",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := a.Wallet.LoginWithGoogle(ctx, strings.TrimSpace(string(raw))); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		}),
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored tokens",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Wallet.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; a verification code is emailed",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			var req dto.RegisterRequest
			var err error
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			alias, _ := cmd.Flags().GetString("alias")
			password, _ := cmd.Flags().GetString("password")
			if req.Name, err = prompt(cmd, "Name", name); err != nil {
				return err
			}
			if req.Email, err = prompt(cmd, "Email", email); err != nil {
				return err
			}
			if req.Alias, err = prompt(cmd, "Alias", alias); err != nil {
				return err
			}
			if req.Password, err = prompt(cmd, "Password", password); err != nil {
				return err
			}
			if err := a.Wallet.Register(ctx, req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Check %s for a verification code, then run: aratiri verify %s <code>\n", req.Email, req.Email)
			return nil
		}),
	}
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("alias", "", "Lightning address alias")
	cmd.Flags().StringP("password", "p", "", "Password")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [email] [code]",
		Short: "Confirm a registration and log in",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Wallet.Verify(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account verified. Logged in.")
			return nil
		}),
	}
}

func forgotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password [email]",
		Short: "Request a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Wallet.ForgotPassword(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the account exists, a reset code is on its way.")
			return nil
		}),
	}
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password [email] [code]",
		Short: "Set a new password with a reset code",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			password, err := prompt(cmd, "New password", password)
			if err != nil {
				return err
			}
			if err := a.Wallet.ResetPassword(ctx, args[0], args[1], password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. You can log in now.")
			return nil
		}),
	}
	cmd.Flags().StringP("password", "p", "", "New password")
	return cmd
}
