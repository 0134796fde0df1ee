// Package cmd holds the capstone command tree.
package cmd

import (
	"fmt"
	"os"

	"capstone/config"
	"capstone/platform"

	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     *config.Config
	logger  = platform.Logger
)

var rootCmd = &cobra.Command{
	Use:           "capstone",
	Short:         "Streaming chat server backed by a hosted language model",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, chatCmd)
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
