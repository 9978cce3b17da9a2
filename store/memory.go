package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"nlcp/finance"
)

// NewMemoryBundle creates a Bundle backed entirely by in-memory stores
func NewMemoryBundle(f *Fixtures) *Bundle {
	if f == nil {
		f = &Fixtures{}
	}
	return &Bundle{
		Clients:    NewMemoryClientStore(f.Clients),
		Portfolios: NewMemoryPortfolioStore(f.Portfolios, f.Transactions),
	}
}

// =============================================================================
// MemoryClientStore
// =============================================================================

// MemoryClientStore serves client profiles from a slice in stored order. It
// counts sessions so tests can assert whether a store was touched.
type MemoryClientStore struct {
	mu      sync.Mutex
	clients []finance.Client
	opens   int
	failure error
}

func NewMemoryClientStore(clients []finance.Client) *MemoryClientStore {
	return &MemoryClientStore{clients: clients}
}

// Opens returns how many sessions have been opened.
func (s *MemoryClientStore) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// FailWith makes every subsequent Open fail with err; nil restores service.
func (s *MemoryClientStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *MemoryClientStore) Open(ctx context.Context) (finance.ClientRepository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.failure != nil {
		return nil, s.failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memClientRepo{clients: s.clients}, nil
}

type memClientRepo struct {
	clients []finance.Client
}

func (r *memClientRepo) Find(_ context.Context, f finance.ClientFilter) ([]finance.Client, error) {
	re := f.Regexp()
	return lo.Filter(r.clients, func(c finance.Client, _ int) bool {
		return matches(re, fieldValues(c, f.Field))
	}), nil
}

func (r *memClientRepo) FindOne(ctx context.Context, f finance.ClientFilter) (*finance.Client, error) {
	found, err := r.Find(ctx, f)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	c := found[0]
	return &c, nil
}

func (r *memClientRepo) CountByManager(context.Context) ([]finance.ManagerCount, error) {
	counts := lo.CountValues(lo.FilterMap(r.clients, func(c finance.Client, _ int) (string, bool) {
		return c.RelationshipManager, c.RelationshipManager != ""
	}))
	out := make([]finance.ManagerCount, 0, len(counts))
	for manager, n := range counts {
		out = append(out, finance.ManagerCount{RelationshipManager: manager, ClientCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClientCount != out[j].ClientCount {
			return out[i].ClientCount > out[j].ClientCount
		}
		return out[i].RelationshipManager < out[j].RelationshipManager
	})
	return out, nil
}

func (r *memClientRepo) TopHoldings(_ context.Context, investmentType string, limit int) ([]finance.InvestmentHolding, error) {
	re := finance.ClientFilter{Value: investmentType, Match: finance.MatchContains}.Regexp()
	var out []finance.InvestmentHolding
	for _, c := range r.clients {
		for _, h := range c.PortfolioByPreference {
			if !re.MatchString(h.Type) {
				continue
			}
			out = append(out, finance.InvestmentHolding{
				ClientID:       c.ClientID,
				Name:           c.Name,
				RiskAppetite:   c.RiskAppetite,
				InvestmentType: h.Type,
				HoldingValue:   h.Value,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].HoldingValue.Cmp(out[j].HoldingValue.Decimal); cmp != 0 {
			return cmp > 0
		}
		return out[i].ClientID < out[j].ClientID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memClientRepo) Close() error { return nil }

func fieldValues(c finance.Client, field string) []string {
	switch field {
	case finance.FieldClientID:
		return []string{c.ClientID}
	case finance.FieldName:
		return []string{c.Name}
	case finance.FieldRiskAppetite:
		return []string{string(c.RiskAppetite)}
	case finance.FieldRelationshipManager:
		return []string{c.RelationshipManager}
	case finance.FieldInvestmentPreferences:
		return c.InvestmentPreferences
	}
	return nil
}

func matches(re *regexp.Regexp, values []string) bool {
	return lo.SomeBy(values, func(v string) bool { return v != "" && re.MatchString(v) })
}

// =============================================================================
// MemoryPortfolioStore
// =============================================================================

// MemoryPortfolioStore serves snapshots and transactions from slices.
type MemoryPortfolioStore struct {
	mu           sync.Mutex
	portfolios   []finance.PortfolioSnapshot
	transactions []finance.Transaction
	opens        int
	failure      error
}

func NewMemoryPortfolioStore(portfolios []finance.PortfolioSnapshot, transactions []finance.Transaction) *MemoryPortfolioStore {
	return &MemoryPortfolioStore{portfolios: portfolios, transactions: transactions}
}

// Opens returns how many sessions have been opened.
func (s *MemoryPortfolioStore) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// FailWith makes every subsequent Open fail with err; nil restores service.
func (s *MemoryPortfolioStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *MemoryPortfolioStore) Open(ctx context.Context) (finance.PortfolioRepository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.failure != nil {
		return nil, s.failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memPortfolioRepo{portfolios: s.portfolios, transactions: s.transactions}, nil
}

type memPortfolioRepo struct {
	portfolios   []finance.PortfolioSnapshot
	transactions []finance.Transaction
}

func (r *memPortfolioRepo) TopPortfolios(_ context.Context, n int) ([]finance.PortfolioSnapshot, error) {
	out := append([]finance.PortfolioSnapshot(nil), r.portfolios...)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].PortfolioValue.Cmp(out[j].PortfolioValue.Decimal); cmp != 0 {
			return cmp > 0
		}
		return out[i].ClientID < out[j].ClientID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *memPortfolioRepo) PortfoliosFor(_ context.Context, clientIDs []string) ([]finance.PortfolioSnapshot, error) {
	return lo.Filter(r.portfolios, func(p finance.PortfolioSnapshot, _ int) bool {
		return lo.Contains(clientIDs, p.ClientID)
	}), nil
}

func (r *memPortfolioRepo) Transactions(_ context.Context, q finance.TransactionQuery) ([]finance.Transaction, error) {
	out := lo.Filter(r.transactions, func(t finance.Transaction, _ int) bool {
		return t.ClientID == q.ClientID && q.InRange(t.TransactionDate.Time)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.After(out[j].TransactionDate.Time)
	})
	return out, nil
}

func (r *memPortfolioRepo) StockHolders(_ context.Context, symbol string) ([]finance.StockHolding, error) {
	type key struct{ client, symbol string }
	totals := map[key]int64{}
	var order []key
	for _, t := range r.transactions {
		if t.TransactionType != finance.Buy || !strings.EqualFold(t.StockSymbol, symbol) {
			continue
		}
		k := key{t.ClientID, t.StockSymbol}
		if _, ok := totals[k]; !ok {
			order = append(order, k)
		}
		totals[k] += t.Quantity
	}
	out := lo.Map(order, func(k key, _ int) finance.StockHolding {
		return finance.StockHolding{ClientID: k.client, StockSymbol: k.symbol, TotalQuantity: totals[k]}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalQuantity != out[j].TotalQuantity {
			return out[i].TotalQuantity > out[j].TotalQuantity
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out, nil
}

func (r *memPortfolioRepo) Close() error { return nil }
