// Package dataset loads the tabular e-commerce dataset into SQLite and owns
// its schema. The data is loaded once at startup and never mutated
// mid-session.
package dataset

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store holds the loaded dataset.
type Store struct {
	db *sql.DB
}

// Open opens the dataset database and creates the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The loaded tables are read concurrently within a dispatch batch; a
	// single connection keeps an in-memory DSN pointing at one database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the dataset tables.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS products (
			product_id INTEGER PRIMARY KEY,
			product_name TEXT NOT NULL,
			aisle_id INTEGER,
			department_id INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS departments (
			department_id INTEGER PRIMARY KEY,
			department TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aisles (
			aisle_id INTEGER PRIMARY KEY,
			aisle TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			order_number INTEGER,
			order_dow INTEGER,
			order_hour_of_day INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS order_products (
			order_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			add_to_cart_order INTEGER,
			reordered INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_products_order ON order_products(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_products_product ON order_products(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_department ON products(department_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// DB exposes the underlying handle to the query layer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// TableCount is one row of the dataset summary.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// Summary returns the row count of every dataset table, in schema order.
func (s *Store) Summary(ctx context.Context) ([]TableCount, error) {
	tables := []string{"products", "departments", "aisles", "orders", "order_products"}
	out := make([]TableCount, 0, len(tables))
	for _, t := range tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t, err)
		}
		out = append(out, TableCount{Table: t, Rows: n})
	}
	return out, nil
}

// Close closes the dataset database.
func (s *Store) Close() error {
	return s.db.Close()
}
