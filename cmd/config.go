package cmd

import (
	"fmt"
	"strings"

	"github.com/longkey1/rulechat/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, api_url, decision_services, bot_name, greeting, request_timeout, promptdirs, save_transcripts, transcript_retention_days, transcriptdir, log_level, log_format, log_file"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  rulechat config                    # Show all configuration
  rulechat config api_url            # Show only the backend URL
  rulechat config promptdirs         # Show only prompt directories`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		transcriptDir, err := config.TranscriptDir(viper.GetViper())
		if err != nil {
			return err
		}

		// If a field is specified, show only that field
		if len(args) > 0 {
			field := strings.ToLower(args[0])
			switch field {
			case "configfile":
				fmt.Println(viper.ConfigFileUsed())
			case "api_url", "apiurl":
				fmt.Println(cfg.APIURL)
			case "decision_services", "decisionservices":
				fmt.Println(cfg.DecisionServices)
			case "bot_name", "botname":
				fmt.Println(cfg.BotName)
			case "greeting":
				fmt.Println(cfg.Greeting)
			case "request_timeout", "requesttimeout":
				fmt.Println(cfg.RequestTimeout)
			case "promptdirs", "prompt_dirs":
				// PromptDirs are already absolute paths
				fmt.Println(strings.Join(cfg.PromptDirs, ","))
			case "save_transcripts", "savetranscripts":
				fmt.Println(cfg.SaveTranscripts)
			case "transcript_retention_days":
				fmt.Println(cfg.TranscriptRetentionDays)
			case "transcriptdir":
				fmt.Println(transcriptDir)
			case "log_level":
				fmt.Println(cfg.LogLevel)
			case "log_format":
				fmt.Println(cfg.LogFormat)
			case "log_file":
				fmt.Println(cfg.LogFile)
			default:
				return fmt.Errorf("unknown field: %s\nAvailable fields: %s", args[0], configFields)
			}
			return nil
		}

		// Display all configuration values
		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("APIURL: %s\n", cfg.APIURL)
		fmt.Printf("DecisionServices: %v\n", cfg.DecisionServices)
		fmt.Printf("BotName: %s\n", cfg.BotName)
		fmt.Printf("Greeting: %s\n", cfg.Greeting)
		fmt.Printf("RequestTimeout: %s\n", cfg.RequestTimeout)
		fmt.Printf("PromptDirectories: %s\n", strings.Join(cfg.PromptDirs, ","))
		fmt.Printf("SaveTranscripts: %v\n", cfg.SaveTranscripts)
		fmt.Printf("TranscriptRetentionDays: %d\n", cfg.TranscriptRetentionDays)
		fmt.Printf("TranscriptDirectory: %s\n", transcriptDir)
		fmt.Printf("LogLevel: %s\n", cfg.LogLevel)
		fmt.Printf("LogFormat: %s\n", cfg.LogFormat)
		fmt.Printf("LogFile: %s\n", cfg.LogFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
