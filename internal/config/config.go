package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the rule agent client
type Config struct {
	APIURL                  string   `toml:"api_url" mapstructure:"api_url"`
	DecisionServices        bool     `toml:"decision_services" mapstructure:"decision_services"` // Use chat_with_tools instead of chat_without_tools
	BotName                 string   `toml:"bot_name" mapstructure:"bot_name"`
	Greeting                string   `toml:"greeting" mapstructure:"greeting"`
	RequestTimeout          string   `toml:"request_timeout" mapstructure:"request_timeout"` // Go duration, "0s" = no timeout
	PromptDirs              []string `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	SaveTranscripts         bool     `toml:"save_transcripts" mapstructure:"save_transcripts"`
	TranscriptRetentionDays int      `toml:"transcript_retention_days" mapstructure:"transcript_retention_days"`
	LogLevel                string   `toml:"log_level" mapstructure:"log_level"`   // debug, info, warn, error
	LogFormat               string   `toml:"log_format" mapstructure:"log_format"` // text or json
	LogFile                 string   `toml:"log_file" mapstructure:"log_file"`     // Optional, used by the TUI
}

// Defaults
const (
	DefaultAPIURL         = "http://localhost:9000"
	DefaultBotName        = "Bot"
	DefaultGreeting       = "Hi, I'm an AI to answer your questions. I can leverage your corporate decision services to generate answers compliant to your business policies"
	DefaultRequestTimeout = "0s"
	DefaultRetentionDays  = 30
)

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(promptDir string) *Config {
	return &Config{
		APIURL:                  DefaultAPIURL,
		DecisionServices:        false,
		BotName:                 DefaultBotName,
		Greeting:                DefaultGreeting,
		RequestTimeout:          DefaultRequestTimeout,
		PromptDirs:              []string{promptDir},
		SaveTranscripts:         true,
		TranscriptRetentionDays: DefaultRetentionDays,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// SetDefaults registers the default values with viper
func SetDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("decision_services", cfg.DecisionServices)
	v.SetDefault("bot_name", cfg.BotName)
	v.SetDefault("greeting", cfg.Greeting)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("prompt_dirs", cfg.PromptDirs)
	v.SetDefault("save_transcripts", cfg.SaveTranscripts)
	v.SetDefault("transcript_retention_days", cfg.TranscriptRetentionDays)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load unmarshals the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.APIURL = expandEnvVar(config.APIURL)
	config.LogFile = expandEnvVar(config.LogFile)
	if config.APIURL == "" {
		return nil, fmt.Errorf("api_url is not configured. Set it in config file (api_url) or environment variable (RULECHAT_API_URL)")
	}

	if _, err := config.Timeout(); err != nil {
		return nil, err
	}

	// Convert prompt directories to absolute paths
	for i, promptDir := range config.PromptDirs {
		absPath, err := ResolvePath(v, expandEnvVar(promptDir))
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %w", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	return config, nil
}

// Timeout parses RequestTimeout. Zero means no timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid request_timeout %q: must not be negative", c.RequestTimeout)
	}
	return d, nil
}

// TranscriptDir returns the directory where transcripts are stored.
// If a config file is used, transcripts live next to it.
// Otherwise, defaults to $HOME/.config/rulechat/transcripts
func TranscriptDir(v *viper.Viper) (string, error) {
	dir, err := Dir(v)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "transcripts"), nil
}
