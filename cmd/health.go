package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the rule agent backend",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		health, err := client.Health(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Backend:\t%s\n", client.BaseURL())
		fmt.Fprintf(w, "Status:\t%s\n", health.Status)
		fmt.Fprintf(w, "LLM:\t%s\n", health.LLM)
		fmt.Fprintf(w, "RAG initialized:\t%v\n", health.RAGInitialized)
		fmt.Fprintf(w, "LangSmith configured:\t%v\n", health.LangsmithConfigured)
		w.Flush()

		if health.Status != "healthy" {
			return fmt.Errorf("backend is %s", health.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
