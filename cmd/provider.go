package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"nlcp/config"
	"nlcp/finance"
	"nlcp/plugin"
	"nlcp/store"
)

var providerProtocol string

var providerCmd = &cobra.Command{
	Use:   "provider <clients|portfolios>",
	Short: "Run a tool provider process",
	Long: `Serve one tool catalog over stdio. This is the entrypoint the host
re-executes for each provider block; it is not meant to be run by hand.

Store settings are read from NLCP_DOCUMENTS_* and NLCP_RELATIONAL_*.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: finance.Catalogs,
	Hidden:    true,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := args[0]
		if !slices.Contains(finance.Catalogs, catalog) {
			return fmt.Errorf("unknown tool catalog %q (expected one of %v)", catalog, finance.Catalogs)
		}
		logger := newLogger("provider."+catalog, true)

		storage, err := config.StorageFromEnv()
		if err != nil {
			return err
		}
		bundle, err := store.NewBundle(storage)
		if err != nil {
			return err
		}
		defer bundle.Close()

		tools, err := finance.CatalogTools(catalog, bundle.Clients, bundle.Portfolios)
		if err != nil {
			return err
		}
		logger.Debug("serving", "protocol", providerProtocol, "tools", len(tools),
			"documents", storage.Documents.Backend, "relational", storage.Relational.Backend)
		return plugin.Serve("nlcp-"+catalog, plugin.NewStaticProvider(tools...), providerProtocol, logger)
	},
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.Flags().StringVar(&providerProtocol, "protocol", config.ProtocolPlugin, "Transport: plugin or mcp")
}
