/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/longkey1/rulechat/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the rulechat version, the git commit it was built from, the build
time and the Go toolchain. Use --short for the version number alone or --json
for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch {
		case versionShort:
			fmt.Fprintln(out, version.Short())
		case versionJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(versionInfo{
				Version:   version.Version,
				Commit:    version.CommitSHA,
				BuildTime: version.BuildTime,
				Go:        runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			})
		default:
			fmt.Fprintln(out, version.Info())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "Show only the version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
	versionCmd.MarkFlagsMutuallyExclusive("short", "json")
}
