package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mladen081/u-m/cmd/internal/app"
	"github.com/mladen081/u-m/cmd/internal/chat"
)

var historyLimit int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the live room",
	Long: `Loads recent history, connects to the realtime endpoint and sends every
line typed on stdin as a message. Type /help inside the room for commands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := requireSession(a); err != nil {
				return err
			}
			return a.RunChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := requireSession(a); err != nil {
				return err
			}
			msgs, err := a.Chat().Messages(ctx, historyLimit)
			if err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), msgs)
			return nil
		})
	},
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "List users with an open connection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := requireSession(a); err != nil {
				return err
			}
			users, err := a.Chat().OnlineUsers(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every message (admin only)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := requireSession(a); err != nil {
				return err
			}
			msg, err := a.Chat().DeleteAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okMark("✓"), msg)
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", chat.DefaultHistoryLimit,
		fmt.Sprintf("number of messages, at most %d", chat.MaxHistoryLimit))
}
