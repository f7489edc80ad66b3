/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/rulechat/internal/config"
	"github.com/spf13/cobra"
)

var (
	initForce  bool
	initAPIURL string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with the default settings, together with the
prompts and transcripts directories next to it.

The file goes to $HOME/.config/rulechat/config.toml unless --config is given.
An existing file is kept unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, err := initTarget()
		if err != nil {
			return err
		}
		configDir := filepath.Dir(configFile)
		promptsDir := filepath.Join(configDir, "prompts")
		transcriptsDir := filepath.Join(configDir, "transcripts")

		for _, dir := range []string{configDir, promptsDir, transcriptsDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		cfg := config.NewDefaultConfig(promptsDir)
		if initAPIURL != "" {
			cfg.APIURL = initAPIURL
		}
		if err := writeConfig(configFile, cfg); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration file created at: %s\n", configFile)
		fmt.Fprintf(out, "Prompt templates go in:       %s\n", promptsDir)
		fmt.Fprintf(out, "Transcripts are saved in:     %s\n", transcriptsDir)
		fmt.Fprintf(out, "\nBackend: %s\nCheck it with: rulechat health\n", cfg.APIURL)
		return nil
	},
}

func initTarget() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "rulechat", "config.toml"), nil
}

func writeConfig(path string, cfg *config.Config) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if initForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("config file already exists at: %s (use --force to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().StringVar(&initAPIURL, "api-url", "", "Backend URL to write instead of the default")
}
