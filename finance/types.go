package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RiskAppetite is a client's declared risk tolerance.
type RiskAppetite string

const (
	RiskHigh   RiskAppetite = "High"
	RiskMedium RiskAppetite = "Medium"
	RiskLow    RiskAppetite = "Low"
)

// RiskLevels lists the accepted risk appetite values.
var RiskLevels = []string{string(RiskHigh), string(RiskMedium), string(RiskLow)}

// Money is an exact decimal amount. It encodes as a bare JSON number so that no
// float rounding happens anywhere between the store and the caller.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "1250000.50".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d}, nil
}

// MustMoney is NewMoney for literals.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{m.Decimal.Add(o.Decimal)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}

// Holding is the value a client holds in one investment category.
type Holding struct {
	Type  string `json:"type"`
	Value Money  `json:"value"`
}

// Client is a client profile from the document store. Fields that are absent
// in the stored document stay empty and are omitted from JSON.
type Client struct {
	ClientID              string       `json:"client_id"`
	Name                  string       `json:"name,omitempty"`
	Address               string       `json:"address,omitempty"`
	RiskAppetite          RiskAppetite `json:"risk_appetite,omitempty"`
	InvestmentPreferences []string     `json:"investment_preferences,omitempty"`
	RelationshipManager   string       `json:"relationship_manager,omitempty"`
	InitialPortfolioValue *Money       `json:"initial_portfolio_value,omitempty"`
	PortfolioByPreference []Holding    `json:"portfolio_by_preference,omitempty"`
}

// PortfolioSnapshot is the current value of a client's portfolio. There is at
// most one per client.
type PortfolioSnapshot struct {
	ClientID       string `json:"client_id"`
	PortfolioValue Money  `json:"portfolio_value"`
}

// TransactionType is buy or sell.
type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Transaction is one buy or sell of a stock by a client.
type Transaction struct {
	ClientID        string          `json:"client_id"`
	StockSymbol     string          `json:"stock_symbol"`
	TransactionType TransactionType `json:"transaction_type"`
	Quantity        int64           `json:"quantity"`
	TransactionDate Date            `json:"transaction_date"`
}

// ClientSummary is the projection returned by the risk and profession lookups.
type ClientSummary struct {
	Name                  string `json:"name,omitempty"`
	InitialPortfolioValue *Money `json:"initial_portfolio_value,omitempty"`
	ClientID              string `json:"client_id"`
}

// ClientRisk is the projection returned by the investment preference lookup.
type ClientRisk struct {
	Name         string       `json:"name,omitempty"`
	RiskAppetite RiskAppetite `json:"risk_appetite,omitempty"`
	ClientID     string       `json:"client_id"`
}

// ManagerCount is the number of clients a relationship manager looks after.
type ManagerCount struct {
	RelationshipManager string `json:"relationship_manager"`
	ClientCount         int    `json:"client_count"`
}

// InvestmentHolding is one client's holding in a single investment category.
type InvestmentHolding struct {
	ClientID       string       `json:"client_id"`
	Name           string       `json:"name,omitempty"`
	RiskAppetite   RiskAppetite `json:"risk_appetite,omitempty"`
	InvestmentType string       `json:"investment_type"`
	HoldingValue   Money        `json:"holding_value"`
}

// ManagerPortfolioTotal is the summed portfolio value of a manager's clients.
type ManagerPortfolioTotal struct {
	RelationshipManager string `json:"relationship_manager"`
	TotalPortfolioValue Money  `json:"total_portfolio_value"`
	Message             string `json:"message,omitempty"`
}

// StockHolding is the total quantity of a stock a client has bought.
type StockHolding struct {
	ClientID      string `json:"client_id"`
	StockSymbol   string `json:"stock_symbol"`
	TotalQuantity int64  `json:"total_quantity"`
}

// NotFound is returned as data when a lookup by identifier finds nothing.
type NotFound struct {
	Message string `json:"message"`
}

// Summary projects a client to a ClientSummary.
func (c Client) Summary() ClientSummary {
	return ClientSummary{Name: c.Name, InitialPortfolioValue: c.InitialPortfolioValue, ClientID: c.ClientID}
}

// Risk projects a client to a ClientRisk.
func (c Client) Risk() ClientRisk {
	return ClientRisk{Name: c.Name, RiskAppetite: c.RiskAppetite, ClientID: c.ClientID}
}
