package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/longkey1/rulechat/internal/conversation"
	"github.com/longkey1/rulechat/internal/transcript"
	"github.com/spf13/cobra"
)

// transcriptsCmd represents the transcripts command
var transcriptsCmd = &cobra.Command{
	Use:     "transcripts",
	Aliases: []string{"transcript"},
	Short:   "Manage saved conversation transcripts",
	Long: `Manage saved transcripts including listing, viewing, exporting and deleting them.

Interactive sessions save a transcript after every completed operation.`,
}

// transcriptsListCmd represents the transcripts list command
var transcriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all transcripts",
	Long:  `List all saved transcripts sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		transcripts, err := store.List()
		if err != nil {
			return fmt.Errorf("listing transcripts: %w", err)
		}

		if len(transcripts) == 0 {
			fmt.Println("No transcripts found.")
			fmt.Println("\nStart a conversation with:")
			fmt.Println("  rulechat start")
			return nil
		}

		// Print table header
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONVERSATION\tUPDATED\tMESSAGES\tNAME")
		fmt.Fprintln(w, "--\t------------\t-------\t--------\t----")

		for _, t := range transcripts {
			name := t.Name
			if name == "" {
				name = "-"
			}
			conv := t.ConversationID
			if len(conv) > 12 {
				conv = conv[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				t.ShortID(),
				conv,
				t.UpdatedAt.Format("2006-01-02 15:04"),
				t.MessageCount(),
				name,
			)
		}
		w.Flush()

		fmt.Println("\nUse 'rulechat transcripts show <id>' to view a transcript.")
		return nil
	},
}

// transcriptsShowCmd represents the transcripts show command
var transcriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a transcript",
	Long: `Show a saved transcript including all messages.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent transcript.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := findTranscript(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Transcript: %s\n", t.ID)
		if t.Name != "" {
			fmt.Printf("Name: %s\n", t.Name)
		}
		fmt.Printf("Conversation: %s\n", t.ConversationID)
		fmt.Printf("Backend: %s\n", t.Backend)
		fmt.Printf("Created: %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated: %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Messages: %d (%d from you)\n", t.MessageCount(), t.UserMessageCount())

		if len(t.Messages) == 0 {
			fmt.Println("\nNo messages in this transcript.")
			return nil
		}

		fmt.Println("\nMessage History:")
		fmt.Println("----------------")
		for _, m := range t.Messages {
			fmt.Printf("\n%s", conversation.RenderPlain(m))
		}
		fmt.Printf("\nContinue this conversation with:\n  rulechat start -c %s\n", t.ConversationID)
		return nil
	},
}

// transcriptsDeleteCmd represents the transcripts delete command
var transcriptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transcript",
	Long: `Delete a saved transcript permanently.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent transcript.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		t, err := findTranscript(args[0])
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(fmt.Sprintf("Are you sure you want to delete transcript %s?", t.ShortID())) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		if err := store.Delete(t.ID); err != nil {
			return fmt.Errorf("deleting transcript: %w", err)
		}
		fmt.Printf("Transcript %s deleted successfully.\n", t.ShortID())
		return nil
	},
}

// transcriptsRenameCmd represents the transcripts rename command
var transcriptsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a transcript",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTranscripts()
		if err != nil {
			return err
		}
		t, err := findTranscript(args[0])
		if err != nil {
			return err
		}

		t.Name = args[1]
		if err := store.Save(t); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
		fmt.Printf("Transcript %s renamed to %q.\n", t.ShortID(), t.Name)
		return nil
	},
}

// transcriptsClearCmd represents the transcripts clear command
var transcriptsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old transcripts",
	Long: `Delete old transcripts permanently.

By default, deletes transcripts last updated more than transcript_retention_days (30) days ago.
Use --before to specify a different date, or --all to delete all transcripts.

Warning: This action cannot be undone.

Examples:
  rulechat transcripts clear                      # Older than the retention period
  rulechat transcripts clear --before 2025-01-01  # Updated before 2025-01-01
  rulechat transcripts clear --before 2025-01     # Updated before 2025-01-01
  rulechat transcripts clear --all                # Delete all transcripts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		beforeDateStr, _ := cmd.Flags().GetString("before")
		deleteAll, _ := cmd.Flags().GetBool("all")
		yes, _ := cmd.Flags().GetBool("yes")

		store, err := openTranscripts()
		if err != nil {
			return err
		}

		if deleteAll {
			if !yes && !confirm("Are you sure you want to delete all transcripts?") {
				fmt.Println("Deletion cancelled.")
				return nil
			}
			n, err := store.Clear()
			if err != nil {
				return fmt.Errorf("clearing transcripts: %w", err)
			}
			fmt.Printf("Successfully deleted %d transcripts.\n", n)
			return nil
		}

		var beforeDate time.Time
		if beforeDateStr != "" {
			beforeDate, err = parseDate(beforeDateStr)
			if err != nil {
				return fmt.Errorf("parsing date: %w", err)
			}
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			beforeDate = time.Now().AddDate(0, 0, -cfg.TranscriptRetentionDays)
		}

		if !yes && !confirm(fmt.Sprintf("Are you sure you want to delete transcripts updated before %s?", beforeDate.Format("2006-01-02"))) {
			fmt.Println("Deletion cancelled.")
			return nil
		}
		n, err := store.Prune(beforeDate)
		if err != nil {
			return fmt.Errorf("deleting transcripts: %w", err)
		}
		fmt.Printf("Successfully deleted %d transcripts.\n", n)
		return nil
	},
}

// transcriptsExportCmd represents the transcripts export command
var transcriptsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a transcript",
	Long: `Export a transcript as JSON, YAML or Markdown.

Without --output the export is written to stdout. If --output is a directory the
file is named after the transcript.

Examples:
  rulechat transcripts export latest --format markdown
  rulechat transcripts export 550e8400 -f yaml -o ./exports`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		exp, err := transcript.NewExporter(format)
		if err != nil {
			return err
		}
		t, err := findTranscript(args[0])
		if err != nil {
			return err
		}

		if output == "" {
			return exp.Export(t, os.Stdout)
		}

		if info, err := os.Stat(output); err == nil && info.IsDir() {
			output = filepath.Join(output, t.ID+"."+exp.Extension())
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()

		if err := exp.Export(t, f); err != nil {
			return fmt.Errorf("exporting transcript: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %s to %s\n", t.ShortID(), output)
		return nil
	},
}

func findTranscript(id string) (*transcript.Transcript, error) {
	store, err := openTranscripts()
	if err != nil {
		return nil, err
	}
	t, err := store.FindByPrefix(id)
	if err != nil {
		return nil, fmt.Errorf("finding transcript: %w", err)
	}
	return t, nil
}

// confirm asks a yes/no question on stdout
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// parseDate parses a date string in various formats and returns a time.Time
// Supported formats: YYYY-MM-DD, YYYY-MM, YYYY
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD, YYYY-MM, or YYYY)", dateStr)
}

func init() {
	rootCmd.AddCommand(transcriptsCmd)
	transcriptsCmd.AddCommand(transcriptsListCmd)
	transcriptsCmd.AddCommand(transcriptsShowCmd)
	transcriptsCmd.AddCommand(transcriptsDeleteCmd)
	transcriptsCmd.AddCommand(transcriptsRenameCmd)
	transcriptsCmd.AddCommand(transcriptsClearCmd)
	transcriptsCmd.AddCommand(transcriptsExportCmd)

	transcriptsDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	transcriptsClearCmd.Flags().String("before", "", "Delete only transcripts updated before this date (format: YYYY-MM-DD, YYYY-MM, or YYYY)")
	transcriptsClearCmd.Flags().Bool("all", false, "Delete all transcripts (overrides retention days setting)")
	transcriptsClearCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	transcriptsExportCmd.Flags().StringP("format", "f", "json", "Export format: json, yaml or markdown")
	transcriptsExportCmd.Flags().StringP("output", "o", "", "Output file or directory (default stdout)")
}
