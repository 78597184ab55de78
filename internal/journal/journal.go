// Package journal keeps an append-only record of order outcomes in a local
// sqlite file. The journal is best-effort bookkeeping: the engine logs a
// failed write and keeps trading.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Entry struct {
	CreatedAt time.Time
	RunID     string
	Symbol    string
	Side      string
	Qty       int
	OrderID   string
	Status    string
	FillPrice float64
}

type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL,
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty INTEGER NOT NULL,
	order_id TEXT NOT NULL,
	status TEXT NOT NULL,
	fill_price REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol, created_at);
`

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(
		`INSERT INTO orders (created_at, run_id, symbol, side, qty, order_id, status, fill_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreatedAt, e.RunID, e.Symbol, e.Side, e.Qty, e.OrderID, e.Status, e.FillPrice,
	)
	if err != nil {
		return fmt.Errorf("record order: %w", err)
	}
	return nil
}

// Orders returns the journaled orders for a symbol, oldest first.
func (j *Journal) Orders(symbol string) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT created_at, run_id, symbol, side, qty, order_id, status, fill_price
		 FROM orders WHERE symbol = ? ORDER BY created_at, id`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.CreatedAt, &e.RunID, &e.Symbol, &e.Side, &e.Qty, &e.OrderID, &e.Status, &e.FillPrice); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
