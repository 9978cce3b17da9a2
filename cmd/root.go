package cmd

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// LogLevelEnv sets the log level when --log-level is not given. Provider
// subprocesses inherit it.
const LogLevelEnv = "NLCP_LOG_LEVEL"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "nlcp",
	Short: "Natural-language questions over client portfolios",
	// Runtime errors are printed by Execute; usage only helps for flag errors.
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()
		if logLevel == "" {
			logLevel = os.Getenv(LogLevelEnv)
		}
	},
}

// newLogger builds the root logger. Provider processes log JSON to stderr so
// the host can forward their lines.
func newLogger(name string, json bool) hclog.Logger {
	level := hclog.LevelFromString(logLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: json,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (env "+LogLevelEnv+")")
}
