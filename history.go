package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"go.aimuz.me/prakriti/config"
	"go.aimuz.me/prakriti/history"
)

var listConversations bool

var historyCmd = &cobra.Command{
	Use:   "history [conversation]",
	Short: "Print a stored conversation",
	Long: `Print the messages of a stored conversation, oldest first, with the
detected language of each. Without an argument the configured user_id is
used.

Examples:
  prakriti history
  prakriti history farmer-42
  prakriti history --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := historyDir(cfg)
		if err != nil {
			return err
		}

		store, err := history.Open(history.Options{Dir: dir})
		if err != nil {
			return err
		}
		defer store.Close()

		if listConversations {
			return printConversations(cmd.Context(), cmd.OutOrStdout(), store)
		}
		id := cfg.UserID
		if len(args) == 1 {
			id = args[0]
		}
		return printHistory(cmd.Context(), cmd.OutOrStdout(), store, id)
	},
}

func init() {
	historyCmd.Flags().BoolVarP(&listConversations, "list", "l", false, "list conversation IDs instead")
}

func historyDir(cfg *config.Config) (string, error) {
	if cfg.HistoryDir != "" {
		return cfg.HistoryDir, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(dir, "history"), nil
}

func printConversations(ctx context.Context, w io.Writer, store *history.Store) error {
	ids, err := store.Conversations(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func printHistory(ctx context.Context, w io.Writer, store *history.Store, conversationID string) error {
	msgs, err := store.Load(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintf(w, "no messages in %q\n", conversationID)
		return nil
	}
	for _, m := range msgs {
		lang := m.Lang
		if lang == "" {
			lang = "--"
		}
		fmt.Fprintf(w, "%s [%s] %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), lang, formatMessage(m))
	}
	return nil
}
