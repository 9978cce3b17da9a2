package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`nlcp %s

Answer natural-language questions about clients and their portfolios.
An agent calls tools served by provider processes over the document and
relational stores, then replies in plain language.

Get started:
  nlcp verify [path]   Validate your configuration
  nlcp seed            Load sample portfolios into the relational store
  nlcp ask "question"  Ask once, or run without a question to chat
  nlcp serve           Start the HTTP and WebSocket API`, Version)
}
