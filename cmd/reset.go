package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/longkey1/rulechat/internal/agent"
	"github.com/spf13/cobra"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the memory of a conversation",
	Long: `Ask the backend to drop the memory of a conversation and start a new one.
The id of the new conversation is printed on stdout.

If the backend cannot be notified a local id is printed instead and the command
exits with an error.`,
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

		sess := agent.NewSession(id)
		resetErr := client.Reset(ctx, sess)
		fmt.Println(sess.ID())
		if resetErr != nil {
			return resetErr
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("conversation", "c", "", "Conversation to reset")
	resetCmd.MarkFlagRequired("conversation")
}
