package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/longkey1/rulechat/internal/agent"
	promptpkg "github.com/longkey1/rulechat/internal/prompt"
	"github.com/spf13/cobra"
)

var (
	uploadPrompt         string
	uploadPromptTemplate string
	uploadArgs           []string
	uploadConversationID string
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF document to the rule agent",
	Long: `Upload a PDF document into a conversation so the agent can answer from it.

With --prompt the agent is also asked a question about the document and its
answer is printed. --prompt-template renders the question from a template, with
the --prompt text as {{input}}.

Examples:
  rulechat upload policy.pdf
  rulechat upload policy.pdf --prompt "Summarize the eligibility rules"
  rulechat upload policy.pdf -c 3f2a... --prompt-template checklist --arg product:loan`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return fmt.Errorf("%s is not a PDF file", path)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, os.Stderr)

		question, err := promptpkg.Format(uploadPrompt, uploadPromptTemplate, cfg.PromptDirs, uploadArgs)
		if err != nil {
			return fmt.Errorf("formatting prompt: %w", err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		client, err := newClient(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext(context.Background())
		defer stop()

		name := filepath.Base(path)
		sess := agent.NewSession(uploadConversationID)
		result, err := client.UploadDocument(ctx, sess, name, f, question.Message)
		if err != nil {
			return fmt.Errorf("uploading PDF: %w", err)
		}

		fmt.Fprintf(os.Stderr, "PDF \"%s\" uploaded successfully.\n", name)
		if strings.TrimSpace(question.Message) != "" {
			if text := result.Text(); text != "" {
				fmt.Println(text)
			} else {
				fmt.Println("No response returned.")
			}
		}
		printConversationHint(sess.ID())
		if result.IsError() {
			return fmt.Errorf("agent returned an error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVarP(&uploadPrompt, "prompt", "p", "", "Question to ask about the uploaded document")
	uploadCmd.Flags().StringVar(&uploadPromptTemplate, "prompt-template", "", "Name of the prompt template used to render the question")
	uploadCmd.Flags().StringArrayVar(&uploadArgs, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	uploadCmd.Flags().StringVarP(&uploadConversationID, "conversation", "c", "", "Upload into an existing backend conversation")
}
