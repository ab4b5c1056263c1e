package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"glim-hq/cards/pkg/cli"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "glim",
	Short: "Glim - GitHub repository cards",
	Long: `Glim renders GitHub repository cards as SVG images.

The server answers GET /{owner}/{repo} with a card showing the repository's
name, description, primary language, stars and forks. Cards are cached in
memory and on disk, GitHub requests go through a circuit breaker, and
clients are rate limited.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml",
		"config file path (a missing file means defaults)")
}
