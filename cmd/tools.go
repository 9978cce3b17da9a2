package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var toolsConfigPath string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and call tools without the agent",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tool the configured providers expose",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			for _, d := range rt.registry.Descriptors() {
				fmt.Printf("%s (%s)\n", d.Name, rt.registry.Owner(d.Name))
				fmt.Printf("  %s\n", d.Description)
				schema, _ := json.Marshal(d.Schema)
				fmt.Printf("  schema: %s\n", schema)
			}
			return nil
		})
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool-name> [json-args]",
	Short: "Call one tool with JSON arguments and print the observation",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := map[string]any{}
		if len(args) > 1 {
			if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			res := rt.registry.Invoke(ctx, args[0], input)
			fmt.Println(res.Observation())
			if res.Failed() {
				return fmt.Errorf("tool %s failed: %s", args[0], res.Err.Kind)
			}
			return nil
		})
	},
}

// withRuntime starts the providers, runs fn, and always shuts them down.
func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	logger := newLogger("nlcp", false)
	if logLevel == "" {
		logger.SetLevel(hclog.Warn)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := startRuntime(ctx, toolsConfigPath, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)
	toolsCmd.PersistentFlags().StringVarP(&toolsConfigPath, "config", "c", ".", "Path to config file or directory")
}
