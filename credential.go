package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go.aimuz.me/prakriti/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the configuration file.

API credentials are shared by spoken replies (speech.engine "openai") and
captions for voice turns (stt). Add one and attach it with --use, or set
speech.credential_id and stt.credential_id by hand.`,
}

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"credentials", "cred"},
	Short:   "Manage API credentials",
}

var credentialAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an API credential",
	Long: `Add an API credential and print its ID.

Example:
  # OpenAI key used for both spoken replies and captions
  prakriti config credential add openai --api-key sk-... --use speech,stt

  # Self-hosted Whisper server for captions only
  prakriti config credential add local-whisper \
    --type openai-compatible --base-url http://localhost:8000/v1 \
    --api-key none --use stt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		apiKey, err := cmd.Flags().GetString("api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'api-key' flag: %w", err)
		}
		credType, err := cmd.Flags().GetString("type")
		if err != nil {
			return fmt.Errorf("failed to read 'type' flag: %w", err)
		}
		baseURL, err := cmd.Flags().GetString("base-url")
		if err != nil {
			return fmt.Errorf("failed to read 'base-url' flag: %w", err)
		}
		uses, err := cmd.Flags().GetStringSlice("use")
		if err != nil {
			return fmt.Errorf("failed to read 'use' flag: %w", err)
		}

		id, err := addCredential(cfg, config.APICredential{
			Name:    args[0],
			Type:    credType,
			BaseURL: baseURL,
			APIKey:  apiKey,
		}, uses)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var credentialRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove an API credential",
	Long: `Remove an API credential. A credential still referenced by speech or
stt is kept; detach it first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.RemoveCredential(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "credential %s removed\n", args[0])
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List API credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		printCredentials(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	credentialAddCmd.Flags().String("api-key", "", "API key (required)")
	credentialAddCmd.Flags().String("type", "openai", `"openai" or "openai-compatible"`)
	credentialAddCmd.Flags().String("base-url", "", "API base URL, required for openai-compatible")
	credentialAddCmd.Flags().StringSlice("use", nil, `attach to "speech" and/or "stt"`)
	_ = credentialAddCmd.MarkFlagRequired("api-key")

	credentialCmd.AddCommand(credentialAddCmd, credentialRemoveCmd, credentialListCmd)
	configCmd.AddCommand(credentialCmd)
}

// addCredential stores cred and attaches it to the named consumers.
func addCredential(cfg *config.Config, cred config.APICredential, uses []string) (string, error) {
	for _, u := range uses {
		if u != "speech" && u != "stt" {
			return "", fmt.Errorf("unknown --use %q, want speech or stt", u)
		}
	}

	id, err := cfg.AddCredential(cred)
	if err != nil {
		return "", err
	}
	if len(uses) == 0 {
		return id, nil
	}
	for _, u := range uses {
		switch u {
		case "speech":
			cfg.Speech.CredentialID = id
			cfg.Speech.Engine = "openai"
		case "stt":
			cfg.STT.CredentialID = id
		}
	}
	if err := cfg.Save(); err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	return id, nil
}

func printCredentials(out io.Writer, cfg *config.Config) {
	if len(cfg.Credentials) == 0 {
		fmt.Fprintln(out, "No credentials configured")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tKEY\tUSED BY")
	for _, c := range cfg.Credentials {
		var usedBy string
		switch {
		case c.ID == cfg.Speech.CredentialID && c.ID == cfg.STT.CredentialID:
			usedBy = "speech,stt"
		case c.ID == cfg.Speech.CredentialID:
			usedBy = "speech"
		case c.ID == cfg.STT.CredentialID:
			usedBy = "stt"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Type, maskKey(c.APIKey), usedBy)
	}
	w.Flush()
}

// maskKey keeps the first and last four characters of long keys.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
