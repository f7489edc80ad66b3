/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/longkey1/rulechat/internal/agent"
	promptpkg "github.com/longkey1/rulechat/internal/prompt"
	"github.com/spf13/cobra"
)

var (
	prompt              string
	argFlags            []string
	useEditor           bool
	useDecisionServices bool
	conversationID      string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the rule agent",
	Long: `Send a message to the rule agent and print the answer.
This command performs a single round trip. The conversation id is reported on
stderr so the conversation can be continued with --conversation.

For interactive conversations, use 'rulechat start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

By default the agent answers from the uploaded documents only (RAG). Use
--decision-services to let it call your decision services.

The prompt file should be in TOML format with the following structure:
user = "User prompt with optional {{input}} placeholder"
decision_services = true  # Optional: overrides the default endpoint for this prompt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, os.Stderr)

		message, err := readMessage(args, useEditor)
		if err != nil {
			return err
		}
		if message == "" {
			return fmt.Errorf("message is empty")
		}

		formatted, err := promptpkg.Format(message, prompt, cfg.PromptDirs, argFlags)
		if err != nil {
			return fmt.Errorf("formatting message with prompt: %w", err)
		}

		// Endpoint priority: flag > prompt template > config file
		useDE := cfg.DecisionServices
		if cmd.Flags().Changed("decision-services") {
			useDE = useDecisionServices
		} else if formatted.DecisionServices != nil {
			useDE = *formatted.DecisionServices
		}

		client, err := newClient(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext(context.Background())
		defer stop()

		sess := agent.NewSession(conversationID)
		reply, err := client.Send(ctx, sess, formatted.Message, useDE)
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}

		fmt.Println(reply.Output)
		printConversationHint(sess.ID())
		if reply.IsError() {
			return fmt.Errorf("agent returned an error")
		}
		return nil
	},
}

// printConversationHint reports the conversation id on stderr
func printConversationHint(id string) {
	fmt.Fprintf(os.Stderr, "\nConversation: %s\n", id)
	if agent.IsFallbackID(id) {
		fmt.Fprintln(os.Stderr, "Warning: the backend did not start a conversation, this id is local only.")
		return
	}
	fmt.Fprintf(os.Stderr, "Continue with:\n  rulechat chat -c %s \"your message\"\n", id)
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of the prompt template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
	chatCmd.Flags().BoolVarP(&useDecisionServices, "decision-services", "d", false, "Let the agent call decision services (chat_with_tools)")
	chatCmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue an existing backend conversation")
}
