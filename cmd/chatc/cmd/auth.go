package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mladen081/u-m/cmd/internal/app"
	authapi "github.com/mladen081/u-m/cmd/internal/auth/api"
)

var (
	username      string
	email         string
	passwordFlag  string
	passwordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Signs in with a username and password and stores the token pair for the
active profile. The password is read from --password-stdin or CHAT_PASSWORD.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pw, err := readSecret(cmd, passwordFlag, passwordStdin, "CHAT_PASSWORD")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Auth().Login(ctx, authapi.Credentials{Username: username, Password: pw})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s signed in as %s\n", okMark("✓"), p.Username)
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pw, err := readSecret(cmd, passwordFlag, passwordStdin, "CHAT_PASSWORD")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Auth().Register(ctx, authapi.Registration{Username: username, Email: email, Password: pw})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s registered and signed in as %s\n", okMark("✓"), p.Username)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Auth().Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s signed out\n", okMark("✓"))
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(_ context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			st := a.Status()
			if !st.SignedIn {
				fmt.Fprintf(out, "%s not signed in (profile store: %s)\n", warnMark("!"), st.Store)
				return nil
			}
			fmt.Fprintf(out, "%s signed in as %s\n", okMark("✓"), st.Username)
			fmt.Fprintf(out, "  admin:  %t\n", st.IsAdmin)
			fmt.Fprintf(out, "  store:  %s (sealed: %t)\n", st.Store, st.Sealed)
			if st.AccessExpiry != nil {
				fmt.Fprintf(out, "  access token expires: %s\n", st.AccessExpiry.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var (
	resetUID   string
	resetToken string
)

var passwordResetCmd = &cobra.Command{
	Use:   "password-reset",
	Short: "Request or confirm a password reset",
}

var passwordResetRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Mail a reset link to the account's address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			msg, err := a.Auth().RequestPasswordReset(ctx, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okMark("✓"), msg)
			return nil
		})
	},
}

var passwordResetConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Set a new password with the uid and token from the reset link",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pw, err := readSecret(cmd, passwordFlag, passwordStdin, "CHAT_NEW_PASSWORD")
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			msg, err := a.Auth().ConfirmPasswordReset(ctx, authapi.PasswordResetConfirm{
				UID:      resetUID,
				Token:    resetToken,
				Password: pw,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okMark("✓"), msg)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd, passwordResetConfirmCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "password (prefer --password-stdin)")
		c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	}

	loginCmd.Flags().StringVarP(&username, "username", "u", "", "username")
	_ = loginCmd.MarkFlagRequired("username")

	registerCmd.Flags().StringVarP(&username, "username", "u", "", "username")
	registerCmd.Flags().StringVar(&email, "email", "", "email address")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("email")

	passwordResetRequestCmd.Flags().StringVar(&email, "email", "", "email address")
	_ = passwordResetRequestCmd.MarkFlagRequired("email")

	passwordResetConfirmCmd.Flags().StringVar(&resetUID, "uid", "", "uid from the reset link")
	passwordResetConfirmCmd.Flags().StringVar(&resetToken, "token", "", "token from the reset link")
	_ = passwordResetConfirmCmd.MarkFlagRequired("uid")
	_ = passwordResetConfirmCmd.MarkFlagRequired("token")

	passwordResetCmd.AddCommand(passwordResetRequestCmd)
	passwordResetCmd.AddCommand(passwordResetConfirmCmd)
}
