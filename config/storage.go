package config

import (
	"fmt"
	"slices"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes the environment variables a provider process reads its
// storage settings from, e.g. NLCP_DOCUMENTS_URI.
const EnvPrefix = "NLCP"

// Document store backends.
const (
	DocumentBackendMemory = "memory"
	DocumentBackendMongo  = "mongo"
)

// Relational store backends.
const (
	RelationalBackendMemory   = "memory"
	RelationalBackendSQLite   = "sqlite"
	RelationalBackendPostgres = "postgres"
	RelationalBackendMySQL    = "mysql"
)

// DocumentStoreConfig configures the client profile store.
type DocumentStoreConfig struct {
	Backend    string `hcl:"backend,optional" envconfig:"BACKEND"`       // "memory" or "mongo"
	URI        string `hcl:"uri,optional" envconfig:"URI"`               // mongodb:// connection string
	Database   string `hcl:"database,optional" envconfig:"DATABASE"`     // default: "wealth"
	Collection string `hcl:"collection,optional" envconfig:"COLLECTION"` // default: "clients"
	Fixtures   string `hcl:"fixtures,optional" envconfig:"FIXTURES"`     // JSON fixtures for the memory backend
}

// RelationalStoreConfig configures the portfolio and transaction store.
type RelationalStoreConfig struct {
	Backend  string `hcl:"backend,optional" envconfig:"BACKEND"` // "memory", "sqlite", "postgres" or "mysql"
	DSN      string `hcl:"dsn,optional" envconfig:"DSN"`         // driver DSN; sqlite takes a file path
	Fixtures string `hcl:"fixtures,optional" envconfig:"FIXTURES"`
}

// StorageConfig groups both domain stores.
type StorageConfig struct {
	Documents  *DocumentStoreConfig   `hcl:"documents,block" envconfig:"DOCUMENTS"`
	Relational *RelationalStoreConfig `hcl:"relational,block" envconfig:"RELATIONAL"`
}

// Defaults fills in default values for unset fields
func (s *StorageConfig) Defaults() {
	if s.Documents == nil {
		s.Documents = &DocumentStoreConfig{}
	}
	if s.Relational == nil {
		s.Relational = &RelationalStoreConfig{}
	}
	if s.Documents.Backend == "" {
		s.Documents.Backend = DocumentBackendMemory
	}
	if s.Documents.Database == "" {
		s.Documents.Database = "wealth"
	}
	if s.Documents.Collection == "" {
		s.Documents.Collection = "clients"
	}
	if s.Relational.Backend == "" {
		s.Relational.Backend = RelationalBackendMemory
	}
	if s.Relational.Backend == RelationalBackendSQLite && s.Relational.DSN == "" {
		s.Relational.DSN = ".nlcp/portfolios.db"
	}
}

// Validate checks backend names and required connection settings.
func (s *StorageConfig) Validate() error {
	docs, rel := s.Documents, s.Relational
	if !slices.Contains([]string{DocumentBackendMemory, DocumentBackendMongo}, docs.Backend) {
		return fmt.Errorf("storage: unknown documents backend %q (expected 'memory' or 'mongo')", docs.Backend)
	}
	if docs.Backend == DocumentBackendMongo && docs.URI == "" {
		return fmt.Errorf("storage: documents backend 'mongo' requires 'uri'")
	}
	backends := []string{RelationalBackendMemory, RelationalBackendSQLite, RelationalBackendPostgres, RelationalBackendMySQL}
	if !slices.Contains(backends, rel.Backend) {
		return fmt.Errorf("storage: unknown relational backend %q (expected one of %v)", rel.Backend, backends)
	}
	if rel.Backend != RelationalBackendMemory && rel.DSN == "" {
		return fmt.Errorf("storage: relational backend %q requires 'dsn'", rel.Backend)
	}
	return nil
}

// Environ renders the storage settings as environment variables for a
// provider subprocess. StorageFromEnv reads them back.
func (s *StorageConfig) Environ() []string {
	kv := func(k, v string) string { return EnvPrefix + "_" + k + "=" + v }
	return []string{
		kv("DOCUMENTS_BACKEND", s.Documents.Backend),
		kv("DOCUMENTS_URI", s.Documents.URI),
		kv("DOCUMENTS_DATABASE", s.Documents.Database),
		kv("DOCUMENTS_COLLECTION", s.Documents.Collection),
		kv("DOCUMENTS_FIXTURES", s.Documents.Fixtures),
		kv("RELATIONAL_BACKEND", s.Relational.Backend),
		kv("RELATIONAL_DSN", s.Relational.DSN),
		kv("RELATIONAL_FIXTURES", s.Relational.Fixtures),
	}
}

// StorageFromEnv loads storage settings from NLCP_* environment variables.
func StorageFromEnv() (*StorageConfig, error) {
	cfg := &StorageConfig{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read storage environment: %w", err)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
