package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nlcp/config"
	"nlcp/store"
)

var (
	seedConfigPath string
	seedFixtures   string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the relational schema and load portfolio fixtures",
	Long: `Create the client_portfolios and transactions tables in the configured
relational store and replace their contents with the fixtures. Without
--fixtures the built-in sample data set is loaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(seedConfigPath)
		if err != nil {
			return err
		}
		rel := cfg.Storage.Relational
		if rel.Backend == config.RelationalBackendMemory {
			return fmt.Errorf("relational backend is 'memory'; nothing to seed")
		}
		if err := cfg.Storage.Validate(); err != nil {
			return err
		}

		fixtures, err := store.LoadFixtures(seedFixtures)
		if err != nil {
			return err
		}

		if rel.Backend == config.RelationalBackendSQLite {
			if err := os.MkdirAll(filepath.Dir(rel.DSN), 0755); err != nil {
				return err
			}
		}
		s, err := store.NewSQLPortfolioStore(rel.Backend, rel.DSN)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := s.Seed(ctx, fixtures); err != nil {
			return err
		}
		fmt.Printf("Seeded %d portfolios and %d transactions into %s\n",
			len(fixtures.Portfolios), len(fixtures.Transactions), rel.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVarP(&seedConfigPath, "config", "c", ".", "Path to config file or directory")
	seedCmd.Flags().StringVar(&seedFixtures, "fixtures", "", "JSON fixtures file (default: built-in sample data)")
}
