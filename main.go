// Command prakriti is a voice-first chat client for an agricultural
// assistant.
//
// Usage:
//
//	prakriti [flags]            start a chat session (same as "chat")
//	prakriti chat [flags]       start a chat session
//	prakriti history [flags]    print the stored conversation
//	prakriti config credential  manage API credentials
//
// Configuration lives in <user config dir>/prakriti/config.json and logs in
// <user config dir>/prakriti/logs.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"go.aimuz.me/prakriti/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	hostFlag   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "prakriti",
	Short:         "Talk to the Prakriti assistant by text, voice or image",
	Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default <user config dir>/prakriti/config.json)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "backend host, overrides server.host")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror logs to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initLogger sends structured logs to a rotating file so they never
// interleave with the chat prompt.
func initLogger() error {
	dir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("get config dir: %w", err)
	}
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "prakriti.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	level := slog.LevelInfo
	if verbose {
		w = io.MultiWriter(os.Stderr, w)
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig loads the configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}
	return cfg, nil
}
