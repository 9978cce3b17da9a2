package store

import (
	"fmt"
	"os"
	"path/filepath"

	"nlcp/config"
)

// NewBundle creates a store Bundle based on the storage configuration
func NewBundle(cfg *config.StorageConfig) (*Bundle, error) {
	if cfg == nil {
		cfg = &config.StorageConfig{}
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bundle := &Bundle{}

	switch cfg.Documents.Backend {
	case config.DocumentBackendMongo:
		bundle.Clients = NewMongoClientStore(cfg.Documents.URI, cfg.Documents.Database, cfg.Documents.Collection)
	default:
		f, err := LoadFixtures(cfg.Documents.Fixtures)
		if err != nil {
			return nil, err
		}
		bundle.Clients = NewMemoryClientStore(f.Clients)
	}

	switch cfg.Relational.Backend {
	case config.RelationalBackendMemory:
		f, err := LoadFixtures(cfg.Relational.Fixtures)
		if err != nil {
			return nil, err
		}
		bundle.Portfolios = NewMemoryPortfolioStore(f.Portfolios, f.Transactions)

	default:
		if cfg.Relational.Backend == config.RelationalBackendSQLite {
			dir := filepath.Dir(cfg.Relational.DSN)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
			}
		}
		sqlStore, err := NewSQLPortfolioStore(cfg.Relational.Backend, cfg.Relational.DSN)
		if err != nil {
			return nil, err
		}
		bundle.Portfolios = sqlStore
		bundle.closer = sqlStore.Close
	}

	return bundle, nil
}
