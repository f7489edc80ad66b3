package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/longkey1/rulechat/internal/agent"
	"github.com/longkey1/rulechat/internal/config"
	"github.com/longkey1/rulechat/internal/conversation"
	"github.com/longkey1/rulechat/internal/logging"
	"github.com/longkey1/rulechat/internal/transcript"
	"github.com/spf13/viper"
)

// loadConfig loads the configuration and applies the --verbose override
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds the logger for cfg writing to w
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, w)
}

// newClient creates the backend client described by cfg
func newClient(cfg *config.Config, logger *slog.Logger) (*agent.Client, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return agent.NewClient(cfg.APIURL,
		agent.WithTimeout(timeout),
		agent.WithLogger(logger.With("component", "agent")),
	), nil
}

// newController creates a conversation controller configured from cfg.
// conversationID, when set, continues an existing backend conversation.
func newController(cfg *config.Config, client conversation.Agent, logger *slog.Logger, conversationID string, useDE bool, opts ...conversation.Option) *conversation.Controller {
	base := []conversation.Option{
		conversation.WithBotName(cfg.BotName),
		conversation.WithGreeting(cfg.Greeting),
		conversation.WithDecisionServices(useDE),
		conversation.WithLogger(logger.With("component", "conversation")),
	}
	if conversationID != "" {
		base = append(base, conversation.WithSession(agent.NewSession(conversationID)))
	}
	return conversation.NewController(client, append(base, opts...)...)
}

// openTranscripts returns the transcript store next to the config file
func openTranscripts() (*transcript.Store, error) {
	dir, err := config.TranscriptDir(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("resolving transcript directory: %w", err)
	}
	return transcript.NewStore(dir), nil
}

// interruptContext returns a context cancelled by Ctrl+C
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// readMessage gets the message from the arguments, the editor, or stdin
func readMessage(args []string, useEditor bool) (string, error) {
	if useEditor {
		message, err := getMessageFromEditor()
		if err != nil {
			return "", fmt.Errorf("getting message from editor: %w", err)
		}
		return message, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	// Read from stdin
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(input)), nil
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "rulechat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	// Open the editor
	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %w", err)
	}

	// Read the edited content
	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

// newTranscriptSaver returns a function persisting the log of one conversation
// into a single transcript, or nil when saving is disabled.
func newTranscriptSaver(cfg *config.Config, store *transcript.Store, logger *slog.Logger) func(string, []conversation.ChatMessage) error {
	if !cfg.SaveTranscripts || store == nil {
		return nil
	}

	if cfg.TranscriptRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.TranscriptRetentionDays)
		if n, err := store.Prune(cutoff); err != nil {
			logger.Warn("pruning transcripts failed", "error", err)
		} else if n > 0 {
			logger.Debug("pruned old transcripts", "count", n, "before", cutoff.Format("2006-01-02"))
		}
	}

	tr := transcript.New(cfg.APIURL, time.Now())
	return func(conversationID string, messages []conversation.ChatMessage) error {
		tr.Update(conversationID, messages, time.Now())
		return store.Save(tr)
	}
}
