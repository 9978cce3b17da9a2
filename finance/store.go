package finance

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// ErrInvalidRecord marks a stored record that could not be decoded. Stores
// wrap it so tools can tell bad data from an unreachable store.
var ErrInvalidRecord = errors.New("invalid stored record")

// Document fields that client lookups filter on.
const (
	FieldClientID              = "client_id"
	FieldName                  = "name"
	FieldRiskAppetite          = "risk_appetite"
	FieldInvestmentPreferences = "investment_preferences"
	FieldRelationshipManager   = "relationship_manager"
)

// MatchMode selects how a ClientFilter compares its value.
type MatchMode int

const (
	// MatchEqual is exact, case-sensitive equality.
	MatchEqual MatchMode = iota
	// MatchContains is a case-insensitive substring match.
	MatchContains
	// MatchWord is a case-insensitive whole-word match.
	MatchWord
	// MatchWhole is a case-insensitive match of the entire value.
	MatchWhole
)

// ClientFilter selects client documents by one field. For array fields a
// document matches when any element matches.
type ClientFilter struct {
	Field string
	Value string
	Match MatchMode
}

// Pattern returns the regular expression every backend evaluates for the
// filter. The value is always matched literally.
func (f ClientFilter) Pattern() string {
	quoted := regexp.QuoteMeta(f.Value)
	switch f.Match {
	case MatchContains:
		return "(?i)" + quoted
	case MatchWord:
		return `(?i)\b` + quoted + `\b`
	case MatchWhole:
		return "(?i)^" + quoted + "$"
	default:
		return "^" + quoted + "$"
	}
}

// Regexp compiles Pattern.
func (f ClientFilter) Regexp() *regexp.Regexp {
	return regexp.MustCompile(f.Pattern())
}

// ClientStore opens sessions against the client document store.
type ClientStore interface {
	Open(ctx context.Context) (ClientRepository, error)
}

// ClientRepository is one session against the client document store.
type ClientRepository interface {
	// Find returns matching clients in stored order.
	Find(ctx context.Context, f ClientFilter) ([]Client, error)
	// FindOne returns the first matching client, or nil.
	FindOne(ctx context.Context, f ClientFilter) (*Client, error)
	// CountByManager counts clients per relationship manager, largest first.
	CountByManager(ctx context.Context) ([]ManagerCount, error)
	// TopHoldings returns the largest holdings in one investment category.
	TopHoldings(ctx context.Context, investmentType string, limit int) ([]InvestmentHolding, error)
	Close() error
}

// PortfolioStore opens sessions against the relational portfolio store.
type PortfolioStore interface {
	Open(ctx context.Context) (PortfolioRepository, error)
}

// TransactionQuery restricts transactions to one client and an optional,
// inclusive date range.
type TransactionQuery struct {
	ClientID string
	From     *time.Time
	To       *time.Time
}

// PortfolioRepository is one session against the relational portfolio store.
type PortfolioRepository interface {
	// TopPortfolios returns the n most valuable portfolios.
	TopPortfolios(ctx context.Context, n int) ([]PortfolioSnapshot, error)
	// PortfoliosFor returns the snapshots that exist for the given clients.
	PortfoliosFor(ctx context.Context, clientIDs []string) ([]PortfolioSnapshot, error)
	// Transactions returns a client's transactions, most recent first.
	Transactions(ctx context.Context, q TransactionQuery) ([]Transaction, error)
	// StockHolders sums bought quantity of a stock per client, largest first.
	StockHolders(ctx context.Context, symbol string) ([]StockHolding, error)
	Close() error
}
