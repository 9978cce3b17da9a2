package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"nlcp/finance"
)

// Bundle holds the two domain stores a provider process queries.
type Bundle struct {
	Clients    finance.ClientStore
	Portfolios finance.PortfolioStore
	closer     func() error
}

// Close cleans up the bundle resources
func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// Fixtures is a complete data set for both stores.
type Fixtures struct {
	Clients      []finance.Client            `json:"clients"`
	Portfolios   []finance.PortfolioSnapshot `json:"portfolios"`
	Transactions []finance.Transaction       `json:"transactions"`
}

//go:embed fixtures/sample.json
var sampleFixtures []byte

// SampleFixtures returns the built-in demo data set.
func SampleFixtures() *Fixtures {
	f, err := decodeFixtures(sampleFixtures)
	if err != nil {
		panic(fmt.Sprintf("embedded fixtures: %v", err))
	}
	return f
}

// LoadFixtures reads a fixtures file. An empty path yields the sample data.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return SampleFixtures(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	f, err := decodeFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return f, nil
}

func decodeFixtures(data []byte) (*Fixtures, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var f Fixtures
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(f.Portfolios))
	for _, p := range f.Portfolios {
		if seen[p.ClientID] {
			return nil, fmt.Errorf("duplicate portfolio snapshot for client %s", p.ClientID)
		}
		seen[p.ClientID] = true
	}
	return &f, nil
}
