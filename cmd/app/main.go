package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	cfgPath string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:           "reply-assistant",
	Short:         "AI reply suggestions for team chat",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "developer mode: noop provider and messenger allowed, console logs")
	rootCmd.AddCommand(serveCmd, enqueueCmd, pricingCmd, credentialCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reply-assistant %s (%s)\n", version, commit)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
