package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"nlcp/agent"
	"nlcp/llm"
	"nlcp/streamers/cli"
)

var (
	askConfigPath string
	askVerbose    bool
	askTurnLog    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question, or start an interactive session",
	Long: `With a question, answer it once and exit. Without one, start an
interactive session that keeps the conversation history between turns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("nlcp", false)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := startRuntime(ctx, askConfigPath, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		a, err := rt.newAgent(ctx, askTurnLog)
		if err != nil {
			return err
		}
		defer a.Close()

		streamer := cli.NewChatHandler(askVerbose)

		if len(args) > 0 {
			res, err := a.Stream(ctx, strings.Join(args, " "), nil, streamer)
			if err != nil {
				return err
			}
			if res.State == agent.StateFailed {
				return fmt.Errorf("turn %s failed: %s", res.TurnID, res.Failure.Kind)
			}
			return nil
		}

		streamer.Welcome(a.ModelName, len(a.Tools()))
		var history []llm.Message
		for {
			input, err := streamer.AwaitClientAnswer()
			if err != nil {
				if err != io.EOF {
					streamer.Error(err)
				}
				streamer.Goodbye()
				return nil
			}
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				streamer.Goodbye()
				return nil
			}

			res, err := a.Stream(ctx, input, history, streamer)
			if err != nil {
				streamer.Error(err)
				continue
			}
			if ctx.Err() != nil {
				streamer.Goodbye()
				return nil
			}
			history = append(history,
				llm.NewTextMessage(llm.RoleUser, input),
				llm.NewTextMessage(llm.RoleAssistant, res.FinalText),
			)
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askConfigPath, "config", "c", ".", "Path to config file or directory")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Show reasoning and tool observations")
	askCmd.Flags().StringVar(&askTurnLog, "turn-log", "", "Write each oracle call's transcript to this JSONL file")
}
