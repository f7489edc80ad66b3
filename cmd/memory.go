package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/longkey1/rulechat/internal/agent"
	"github.com/longkey1/rulechat/internal/conversation"
	"github.com/spf13/cobra"
)

// memoryCmd represents the memory command
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show the server-side memory of a conversation",
	Long: `Fetch and pretty-print what the backend remembers about a conversation.
Exits with an error if the backend reports a failure or cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("conversation")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg, newLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}

		ctx, stop := interruptContext(context.Background())
		defer stop()

		snap := client.InspectMemory(ctx, agent.NewSession(id))
		if !snap.OK() {
			reason := "Unknown error"
			if snap != nil && snap.Message != "" {
				reason = snap.Message
			}
			return fmt.Errorf("failed to retrieve memory: %s", reason)
		}

		fmt.Println(conversation.IndentJSON(snap.Memory))
		fmt.Fprintf(os.Stderr, "\nMemory Size: %d characters\n", snap.MemorySize)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)

	memoryCmd.Flags().StringP("conversation", "c", "", "Conversation to inspect")
	memoryCmd.MarkFlagRequired("conversation")
}
