/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/longkey1/rulechat/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rulechat",
	Short: "A chat client for the rule agent",
	Long: `rulechat is a command-line client for the rule agent backend.
It answers questions with retrieval over your uploaded policy documents and,
when enabled, with your corporate decision services.

Start an interactive conversation with 'rulechat start' (or 'rulechat start --tui'),
or send one-shot requests with 'rulechat chat', 'rulechat upload' and friends.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/rulechat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (forces debug logging)")
}

var systemConfigDirs = []string{"/etc/rulechat", "/usr/local/etc/rulechat"}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	v.SetEnvPrefix("RULECHAT")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "rulechat")

	// Later directories take precedence
	defaults := config.NewDefaultConfig(filepath.Join(userConfigDir, "prompts"))
	defaults.PromptDirs = []string{
		"/usr/share/rulechat/prompts",
		"/usr/local/share/rulechat/prompts",
		filepath.Join(userConfigDir, "prompts"),
	}
	config.SetDefaults(v, defaults)

	for _, key := range []string{"api_url", "decision_services", "request_timeout", "log_level", "log_format", "log_file"} {
		v.BindEnv(key, "RULECHAT_"+strings.ToUpper(key))
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		used, err := config.ReadLayered(v, systemConfigDirs, userConfigDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		if verbose {
			for _, path := range used {
				fmt.Fprintln(os.Stderr, "Loaded config:", path)
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "  api_url:", v.GetString("api_url"))
		fmt.Fprintln(os.Stderr, "  decision_services:", v.GetBool("decision_services"))
		fmt.Fprintln(os.Stderr, "  request_timeout:", v.GetString("request_timeout"))
		fmt.Fprintln(os.Stderr, "  prompt_dirs:", v.GetStringSlice("prompt_dirs"))
	}
}
