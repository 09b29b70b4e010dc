package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lounge",
	Short: "Lounge - gaming lounge session tracker and billing engine",
	Long: `Lounge tracks play sessions on the consoles of a gaming lounge, bills them by
the hour at a per-tier rate plus food and drink orders, and reports revenue.
It runs as a local HTTP JSON API (serve) or directly from the command line.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the server when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: search /etc/lounge, $HOME/.lounge, .)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Lounge version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
