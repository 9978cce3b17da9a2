package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nlcp/server"
)

var (
	serveConfigPath string
	serveListen     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tool providers and serve the query API",
	Long: `Start every configured tool provider, build the agent and serve
POST /query, GET /health, GET /tools and the /ws event stream.

Shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("nlcp", false)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := startRuntime(ctx, serveConfigPath, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		a, err := rt.newAgent(ctx, "")
		if err != nil {
			return err
		}
		defer a.Close()

		if serveListen != "" {
			rt.cfg.Server.Listen = serveListen
		}
		srv := server.New(server.Options{
			Agent:     a,
			Providers: rt.supervisor,
			Config:    rt.cfg.Server,
			Logger:    logger,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		fmt.Fprintf(os.Stderr, "Serving %d tools with model %s on %s\n", rt.registry.Len(), a.ModelName, rt.cfg.Server.Listen)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", ".", "Path to config file or directory")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Override the server listen address")
}
