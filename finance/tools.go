package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"nlcp/aitools"
)

// Catalog names for the two provider processes.
const (
	CatalogClients    = "clients"
	CatalogPortfolios = "portfolios"
)

// Catalogs lists the known catalog names.
var Catalogs = []string{CatalogClients, CatalogPortfolios}

// CatalogTools returns the tools one provider process serves.
func CatalogTools(catalog string, clients ClientStore, portfolios PortfolioStore) ([]aitools.Tool, error) {
	switch catalog {
	case CatalogClients:
		return ClientTools(clients), nil
	case CatalogPortfolios:
		return PortfolioTools(portfolios, clients), nil
	default:
		return nil, fmt.Errorf("unknown tool catalog %q (expected one of %v)", catalog, Catalogs)
	}
}

// ClientTools returns the document store operations.
func ClientTools(clients ClientStore) []aitools.Tool {
	q := &clientQueries{store: clients}
	return []aitools.Tool{
		&Handler{
			Name:        "get_client_profile_by_name",
			Description: "Retrieves a client's detailed profile by name (case-insensitive, partial names match). Includes address, risk appetite, investment preferences, relationship manager and initial portfolio value. Returns {} when no client matches.",
			Schema: object(aitools.PropertyMap{
				"client_name": stringProp("Full or partial client name"),
			}, "client_name"),
			Run: q.profileByName,
		},
		&Handler{
			Name:        "get_client_profile_by_id",
			Description: "Retrieves the full client profile using the unique client ID.",
			Schema: object(aitools.PropertyMap{
				"client_id": stringProp("Client identifier, e.g. C7"),
			}, "client_id"),
			Run: q.profileByID,
		},
		&Handler{
			Name:        "get_clients_by_risk_appetite",
			Description: "Lists client names, IDs and initial portfolio values for a risk appetite level: 'High', 'Medium' or 'Low'.",
			Schema: object(aitools.PropertyMap{
				"risk_appetite_level": {
					Type:        aitools.TypeString,
					Description: "Risk appetite level",
					Enum:        RiskLevels,
				},
			}, "risk_appetite_level"),
			Run: q.byRiskAppetite,
		},
		&Handler{
			Name:        "get_clients_by_profession",
			Description: "Lists clients identified by a profession (e.g. 'Actor', 'Sportsperson'). The profession is matched case-insensitively as a whole word within the client's name.",
			Schema: object(aitools.PropertyMap{
				"profession": stringProp("Profession to look for"),
			}, "profession"),
			Run: q.byProfession,
		},
		&Handler{
			Name:        "get_clients_by_investment_preference",
			Description: "Lists client names, IDs and risk appetite for clients with a given investment preference (e.g. 'Equities').",
			Schema: object(aitools.PropertyMap{
				"preference": stringProp("Investment preference"),
			}, "preference"),
			Run: q.byInvestmentPreference,
		},
		&Handler{
			Name:        "get_top_relationship_managers",
			Description: "Lists relationship managers with the number of clients each manages, largest book first.",
			Schema:      object(nil),
			Run:         q.topManagers,
		},
		&Handler{
			Name:        "get_client_ids_by_relationship_manager",
			Description: "Lists the client IDs managed by a relationship manager. Use the IDs with portfolio and transaction tools.",
			Schema: object(aitools.PropertyMap{
				"relationship_manager_name": stringProp("Relationship manager name"),
			}, "relationship_manager_name"),
			Run: q.idsByManager,
		},
		&Handler{
			Name:        "get_top_n_clients_by_investment_type_value",
			Description: "Lists the clients with the highest holdings in one investment type (e.g. 'Real Estate'), with client_id, name, risk_appetite, investment_type and holding_value.",
			Schema: object(aitools.PropertyMap{
				"investment_type": stringProp("Investment type"),
				"limit": {
					Type:        aitools.TypeNumber,
					Description: "Number of clients to return",
					Default:     float64(5),
				},
			}, "investment_type"),
			Run: q.topByInvestmentType,
		},
	}
}

// PortfolioTools returns the relational store operations. The manager
// aggregation also reads the client store to resolve client IDs.
func PortfolioTools(portfolios PortfolioStore, clients ClientStore) []aitools.Tool {
	q := &portfolioQueries{store: portfolios, clients: clients}
	return []aitools.Tool{
		&Handler{
			Name:        "get_top_n_portfolios",
			Description: "Lists the N most valuable portfolios by latest portfolio value.",
			Schema: object(aitools.PropertyMap{
				"limit": {
					Type:        aitools.TypeNumber,
					Description: "Number of portfolios to return",
					Default:     float64(5),
				},
			}),
			Run: q.topPortfolios,
		},
		&Handler{
			Name:        "get_portfolio_values_by_relationship_manager",
			Description: "Totals the latest portfolio value of every client managed by a relationship manager, cross-referencing client profiles with portfolio data.",
			Schema: object(aitools.PropertyMap{
				"relationship_manager_name": stringProp("Relationship manager's full name"),
			}, "relationship_manager_name"),
			Run: q.managerTotal,
		},
		&Handler{
			Name:        "get_client_transactions",
			Description: "Lists a client's transactions, most recent first, optionally restricted to an inclusive date range. Dates use YYYY-MM-DD.",
			Schema: object(aitools.PropertyMap{
				"client_id":  stringProp("Client identifier"),
				"start_date": {Type: aitools.TypeString, Format: "date", Description: "Earliest date, YYYY-MM-DD"},
				"end_date":   {Type: aitools.TypeString, Format: "date", Description: "Latest date, YYYY-MM-DD"},
			}, "client_id"),
			Run: q.transactions,
		},
		&Handler{
			Name:        "get_stock_holders_for_stock",
			Description: "Lists the clients who bought a stock and the total quantity each bought. The symbol is case-insensitive.",
			Schema: object(aitools.PropertyMap{
				"stock_symbol": stringProp("Ticker symbol, e.g. RELIANCE"),
			}, "stock_symbol"),
			Run: q.stockHolders,
		},
	}
}

type clientQueries struct {
	store ClientStore
}

// session opens the client store for one call.
func (q *clientQueries) session(ctx context.Context, fn func(ClientRepository) (any, error)) (any, error) {
	return withClients(ctx, q.store, fn)
}

func withClients(ctx context.Context, store ClientStore, fn func(ClientRepository) (any, error)) (any, error) {
	repo, err := store.Open(ctx)
	if err != nil {
		return nil, aitools.Errorf(aitools.KindStoreUnavailable, "client store: %v", err)
	}
	defer repo.Close()
	return fn(repo)
}

func (q *clientQueries) profileByName(ctx context.Context, args Args) (any, error) {
	name, err := args.NonEmpty("client_name")
	if err != nil {
		return nil, err
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		c, err := repo.FindOne(ctx, ClientFilter{Field: FieldName, Value: name, Match: MatchContains})
		if err != nil {
			return nil, err
		}
		if c == nil {
			return struct{}{}, nil
		}
		return c, nil
	})
}

func (q *clientQueries) profileByID(ctx context.Context, args Args) (any, error) {
	id, err := args.NonEmpty("client_id")
	if err != nil {
		return nil, err
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		c, err := repo.FindOne(ctx, ClientFilter{Field: FieldClientID, Value: id, Match: MatchEqual})
		if err != nil {
			return nil, err
		}
		if c == nil {
			return NotFound{Message: fmt.Sprintf("Client with ID %s not found.", id)}, nil
		}
		return c, nil
	})
}

func (q *clientQueries) byRiskAppetite(ctx context.Context, args Args) (any, error) {
	level, err := args.Text("risk_appetite_level")
	if err != nil {
		return nil, err
	}
	if !lo.Contains(RiskLevels, level) {
		return nil, aitools.Errorf(aitools.KindInvalidArgument, "invalid risk appetite level %q, must be 'High', 'Medium', or 'Low'", level)
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		found, err := repo.Find(ctx, ClientFilter{Field: FieldRiskAppetite, Value: level, Match: MatchEqual})
		if err != nil {
			return nil, err
		}
		return lo.Map(found, func(c Client, _ int) ClientSummary { return c.Summary() }), nil
	})
}

func (q *clientQueries) byProfession(ctx context.Context, args Args) (any, error) {
	profession, err := args.NonEmpty("profession")
	if err != nil {
		return nil, err
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		found, err := repo.Find(ctx, ClientFilter{Field: FieldName, Value: profession, Match: MatchWord})
		if err != nil {
			return nil, err
		}
		return lo.Map(found, func(c Client, _ int) ClientSummary { return c.Summary() }), nil
	})
}

func (q *clientQueries) byInvestmentPreference(ctx context.Context, args Args) (any, error) {
	pref, err := args.NonEmpty("preference")
	if err != nil {
		return nil, err
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		found, err := repo.Find(ctx, ClientFilter{Field: FieldInvestmentPreferences, Value: pref, Match: MatchContains})
		if err != nil {
			return nil, err
		}
		return lo.Map(found, func(c Client, _ int) ClientRisk { return c.Risk() }), nil
	})
}

func (q *clientQueries) topManagers(ctx context.Context, _ Args) (any, error) {
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		counts, err := repo.CountByManager(ctx)
		if err != nil {
			return nil, err
		}
		return nonNil(counts), nil
	})
}

func (q *clientQueries) idsByManager(ctx context.Context, args Args) (any, error) {
	manager, err := args.NonEmpty("relationship_manager_name")
	if err != nil {
		return nil, err
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		found, err := repo.Find(ctx, ClientFilter{Field: FieldRelationshipManager, Value: manager, Match: MatchContains})
		if err != nil {
			return nil, err
		}
		return lo.Map(found, func(c Client, _ int) string { return c.ClientID }), nil
	})
}

func (q *clientQueries) topByInvestmentType(ctx context.Context, args Args) (any, error) {
	kind, err := args.NonEmpty("investment_type")
	if err != nil {
		return nil, err
	}
	n, err := args.Limit("limit")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []InvestmentHolding{}, nil
	}
	return q.session(ctx, func(repo ClientRepository) (any, error) {
		top, err := repo.TopHoldings(ctx, kind, n)
		if err != nil {
			return nil, err
		}
		return nonNil(top), nil
	})
}

type portfolioQueries struct {
	store   PortfolioStore
	clients ClientStore
}

func (q *portfolioQueries) session(ctx context.Context, fn func(PortfolioRepository) (any, error)) (any, error) {
	repo, err := q.store.Open(ctx)
	if err != nil {
		return nil, aitools.Errorf(aitools.KindStoreUnavailable, "portfolio store: %v", err)
	}
	defer repo.Close()
	return fn(repo)
}

func (q *portfolioQueries) topPortfolios(ctx context.Context, args Args) (any, error) {
	n, err := args.Limit("limit")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []PortfolioSnapshot{}, nil
	}
	return q.session(ctx, func(repo PortfolioRepository) (any, error) {
		top, err := repo.TopPortfolios(ctx, n)
		if err != nil {
			return nil, err
		}
		return nonNil(top), nil
	})
}

// managerTotal resolves the manager's clients in the document store first and
// only consults the relational store when that set is non-empty. Clients with
// no snapshot contribute zero.
func (q *portfolioQueries) managerTotal(ctx context.Context, args Args) (any, error) {
	manager, err := args.NonEmpty("relationship_manager_name")
	if err != nil {
		return nil, err
	}

	found, err := withClients(ctx, q.clients, func(repo ClientRepository) (any, error) {
		return repo.Find(ctx, ClientFilter{Field: FieldRelationshipManager, Value: manager, Match: MatchWhole})
	})
	if err != nil {
		return nil, err
	}
	ids := lo.Uniq(lo.FilterMap(found.([]Client), func(c Client, _ int) (string, bool) {
		return c.ClientID, c.ClientID != ""
	}))

	if len(ids) == 0 {
		return ManagerPortfolioTotal{
			RelationshipManager: manager,
			Message:             fmt.Sprintf("No clients found for relationship manager %s.", manager),
		}, nil
	}

	return q.session(ctx, func(repo PortfolioRepository) (any, error) {
		snaps, err := repo.PortfoliosFor(ctx, ids)
		if err != nil {
			return nil, err
		}
		total := Money{}
		for _, s := range snaps {
			total = total.Add(s.PortfolioValue)
		}
		return ManagerPortfolioTotal{RelationshipManager: manager, TotalPortfolioValue: total}, nil
	})
}

func (q *portfolioQueries) transactions(ctx context.Context, args Args) (any, error) {
	id, err := args.NonEmpty("client_id")
	if err != nil {
		return nil, err
	}
	from, err := args.Date("start_date")
	if err != nil {
		return nil, err
	}
	to, err := args.Date("end_date")
	if err != nil {
		return nil, err
	}

	query := TransactionQuery{ClientID: id}
	if from != nil {
		query.From = &from.Time
	}
	if to != nil {
		query.To = &to.Time
	}
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return []Transaction{}, nil
	}

	return q.session(ctx, func(repo PortfolioRepository) (any, error) {
		txs, err := repo.Transactions(ctx, query)
		if err != nil {
			return nil, err
		}
		return nonNil(txs), nil
	})
}

func (q *portfolioQueries) stockHolders(ctx context.Context, args Args) (any, error) {
	symbol, err := args.NonEmpty("stock_symbol")
	if err != nil {
		return nil, err
	}
	return q.session(ctx, func(repo PortfolioRepository) (any, error) {
		holders, err := repo.StockHolders(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return nonNil(holders), nil
	})
}

// InRange reports whether t falls within the query's inclusive date range.
func (q TransactionQuery) InRange(t time.Time) bool {
	day := t.Format(DateLayout)
	if q.From != nil && day < q.From.Format(DateLayout) {
		return false
	}
	if q.To != nil && day > q.To.Format(DateLayout) {
		return false
	}
	return true
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
