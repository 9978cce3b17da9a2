package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"nlcp/finance"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	driver string
	schema []string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// valueOrder is the ORDER BY expression for portfolio_value.
	valueOrder string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite3",
		// NUMERIC affinity would coerce values to REAL and lose digits, so
		// amounts are kept as decimal text and cast only for ordering.
		valueOrder: "CAST(portfolio_value AS REAL)",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS client_portfolios (
    client_id TEXT PRIMARY KEY,
    portfolio_value TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id TEXT NOT NULL,
    stock_symbol TEXT NOT NULL,
    transaction_type TEXT NOT NULL CHECK (transaction_type IN ('buy', 'sell')),
    quantity INTEGER NOT NULL,
    transaction_date TEXT NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_client ON transactions(client_id, transaction_date)`,
		},
	},
	"postgres": {
		driver:     "pgx",
		numbered:   true,
		valueOrder: "portfolio_value",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS client_portfolios (
    client_id VARCHAR(64) PRIMARY KEY,
    portfolio_value NUMERIC(38, 4) NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    client_id VARCHAR(64) NOT NULL,
    stock_symbol VARCHAR(32) NOT NULL,
    transaction_type VARCHAR(4) NOT NULL CHECK (transaction_type IN ('buy', 'sell')),
    quantity BIGINT NOT NULL,
    transaction_date DATE NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_client ON transactions(client_id, transaction_date)`,
		},
	},
	"mysql": {
		driver:     "mysql",
		valueOrder: "portfolio_value",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS client_portfolios (
    client_id VARCHAR(64) PRIMARY KEY,
    portfolio_value DECIMAL(38, 4) NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS transactions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    client_id VARCHAR(64) NOT NULL,
    stock_symbol VARCHAR(32) NOT NULL,
    transaction_type ENUM('buy', 'sell') NOT NULL,
    quantity BIGINT NOT NULL,
    transaction_date DATE NOT NULL,
    INDEX idx_transactions_client (client_id, transaction_date)
)`,
		},
	},
}

// bind rewrites ? placeholders for dialects that number them.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLPortfolioStore serves snapshots and transactions from a relational
// database. The pool is shared; each Open checks out one connection.
type SQLPortfolioStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLPortfolioStore opens a pool for backend ("sqlite", "postgres" or
// "mysql") without connecting; connection failures surface on Open.
func NewSQLPortfolioStore(backend, dsn string) (*SQLPortfolioStore, error) {
	d, ok := dialects[backend]
	if !ok {
		return nil, fmt.Errorf("unknown relational backend: %s", backend)
	}
	if backend == "sqlite" && !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	if backend == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &SQLPortfolioStore{db: db, dialect: d}, nil
}

// Close closes the pool.
func (s *SQLPortfolioStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *SQLPortfolioStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Seed replaces the store contents with the fixtures' portfolios and
// transactions.
func (s *SQLPortfolioStore) Seed(ctx context.Context, f *Fixtures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM transactions", "DELETE FROM client_portfolios"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}

	insertPortfolio := s.dialect.bind("INSERT INTO client_portfolios (client_id, portfolio_value) VALUES (?, ?)")
	for _, p := range f.Portfolios {
		if _, err := tx.ExecContext(ctx, insertPortfolio, p.ClientID, p.PortfolioValue.String()); err != nil {
			return fmt.Errorf("insert portfolio %s: %w", p.ClientID, err)
		}
	}

	insertTx := s.dialect.bind(`INSERT INTO transactions (client_id, stock_symbol, transaction_type, quantity, transaction_date)
VALUES (?, ?, ?, ?, ?)`)
	for _, t := range f.Transactions {
		if _, err := tx.ExecContext(ctx, insertTx, t.ClientID, t.StockSymbol, string(t.TransactionType), t.Quantity, t.TransactionDate.String()); err != nil {
			return fmt.Errorf("insert transaction for %s: %w", t.ClientID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLPortfolioStore) Open(ctx context.Context) (finance.PortfolioRepository, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &sqlPortfolioRepo{conn: conn, dialect: s.dialect}, nil
}

type sqlPortfolioRepo struct {
	conn    *sql.Conn
	dialect dialect
}

func (r *sqlPortfolioRepo) Close() error {
	return r.conn.Close()
}

func (r *sqlPortfolioRepo) TopPortfolios(ctx context.Context, n int) ([]finance.PortfolioSnapshot, error) {
	rows, err := r.conn.QueryContext(ctx, r.dialect.bind(`
SELECT client_id, portfolio_value
FROM client_portfolios
ORDER BY `+r.dialect.valueOrder+` DESC, client_id ASC
LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("query top portfolios: %w", err)
	}
	return scanSnapshots(rows)
}

func (r *sqlPortfolioRepo) PortfoliosFor(ctx context.Context, clientIDs []string) ([]finance.PortfolioSnapshot, error) {
	if len(clientIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(clientIDs)), ", ")
	args := make([]any, len(clientIDs))
	for i, id := range clientIDs {
		args[i] = id
	}
	rows, err := r.conn.QueryContext(ctx, r.dialect.bind(`
SELECT client_id, portfolio_value
FROM client_portfolios
WHERE client_id IN (`+placeholders+`)
ORDER BY client_id ASC`), args...)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]finance.PortfolioSnapshot, error) {
	defer rows.Close()
	var out []finance.PortfolioSnapshot
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		m, err := finance.NewMoney(value)
		if err != nil {
			return nil, fmt.Errorf("portfolio %s: %w: %w", id, finance.ErrInvalidRecord, err)
		}
		out = append(out, finance.PortfolioSnapshot{ClientID: id, PortfolioValue: m})
	}
	return out, rows.Err()
}

func (r *sqlPortfolioRepo) Transactions(ctx context.Context, q finance.TransactionQuery) ([]finance.Transaction, error) {
	query := `
SELECT client_id, stock_symbol, transaction_type, quantity, transaction_date
FROM transactions
WHERE client_id = ?`
	args := []any{q.ClientID}
	if q.From != nil {
		query += " AND transaction_date >= ?"
		args = append(args, q.From.Format(finance.DateLayout))
	}
	if q.To != nil {
		query += " AND transaction_date <= ?"
		args = append(args, q.To.Format(finance.DateLayout))
	}
	query += " ORDER BY transaction_date DESC, id ASC"

	rows, err := r.conn.QueryContext(ctx, r.dialect.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []finance.Transaction
	for rows.Next() {
		var (
			t    finance.Transaction
			kind string
			date sqlDate
		)
		if err := rows.Scan(&t.ClientID, &t.StockSymbol, &kind, &t.Quantity, &date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.TransactionType = finance.TransactionType(kind)
		t.TransactionDate = date.Date
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *sqlPortfolioRepo) StockHolders(ctx context.Context, symbol string) ([]finance.StockHolding, error) {
	rows, err := r.conn.QueryContext(ctx, r.dialect.bind(`
SELECT client_id, stock_symbol, SUM(quantity) AS total_quantity
FROM transactions
WHERE transaction_type = 'buy' AND LOWER(stock_symbol) = LOWER(?)
GROUP BY client_id, stock_symbol
ORDER BY total_quantity DESC, client_id ASC`), symbol)
	if err != nil {
		return nil, fmt.Errorf("query stock holders: %w", err)
	}
	defer rows.Close()

	var out []finance.StockHolding
	for rows.Next() {
		var h finance.StockHolding
		if err := rows.Scan(&h.ClientID, &h.StockSymbol, &h.TotalQuantity); err != nil {
			return nil, fmt.Errorf("scan stock holder: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// sqlDate scans DATE columns, which drivers return as time.Time, string or
// raw bytes depending on backend.
type sqlDate struct {
	finance.Date
}

func (d *sqlDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Date = finance.Date{Time: time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)}
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("%w: unsupported date value %T", finance.ErrInvalidRecord, src)
}

func (d *sqlDate) parse(s string) error {
	if len(s) > len(finance.DateLayout) {
		s = s[:len(finance.DateLayout)]
	}
	parsed, err := finance.ParseDate(s)
	if err != nil {
		return fmt.Errorf("%w: %w", finance.ErrInvalidRecord, err)
	}
	d.Date = parsed
	return nil
}
