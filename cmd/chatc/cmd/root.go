// Package cmd is the chatc command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mladen081/u-m/cmd/internal/app"
	"github.com/mladen081/u-m/cmd/internal/auth/session"
)

var (
	apiURL   string
	profile  string
	logLevel string
	storeArg string
)

var rootCmd = &cobra.Command{
	Use:   "chatc",
	Short: "Terminal client for the chat service",
	Long: `chatc signs in to the chat service, keeps the session alive across
token expiry, and joins the live room over a websocket.

Configuration comes from defaults, the YAML file named by CHAT_CONFIG, then
CHAT_* environment variables. The flags below override the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// Flags win over the environment; LoadConfig reads the environment.
		setEnvFromFlag(cmd, "api-url", "CHAT_API_URL", apiURL)
		setEnvFromFlag(cmd, "profile", "CHAT_PROFILE", profile)
		setEnvFromFlag(cmd, "log-level", "CHAT_LOG_LEVEL", logLevel)
		setEnvFromFlag(cmd, "store", "CHAT_STORE", storeArg)
	},
}

// Execute runs the root command.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (CHAT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "credential profile (CHAT_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (CHAT_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&storeArg, "store", "", "sqlite, postgres or memory (CHAT_STORE)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(onlineCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(passwordResetCmd)
}

func setEnvFromFlag(cmd *cobra.Command, flag, key, val string) {
	if cmd.Flags().Changed(flag) {
		_ = os.Setenv(key, val)
	}
}

// withApp opens the runtime, runs fn and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return fn(ctx, a)
}

// requireSession fails early when nothing is stored for the profile.
func requireSession(a *app.App) error {
	if !a.Auth().IsAuthenticated() {
		return fmt.Errorf("%w: run chatc login", app.ErrNotSignedIn)
	}
	return nil
}

// describe renders err for the terminal, preferring the server's own message.
func describe(err error) string {
	if session.IsTerminal(err) {
		return "session expired, run chatc login"
	}
	var ae *session.APIError
	if errors.As(err, &ae) {
		if ae.IsValidation() && len(ae.Fields) > 0 {
			return fieldSummary(ae)
		}
		return ae.FirstMessage()
	}
	return err.Error()
}
