package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// tableFiles maps dataset table names to the CSV file names that feed them.
// The Instacart export ships the order/product join as either
// order_products.csv or order_products__train.csv.
var tableFiles = map[string][]string{
	"products":       {"products.csv"},
	"departments":    {"departments.csv"},
	"aisles":         {"aisles.csv"},
	"orders":         {"orders.csv"},
	"order_products": {"order_products.csv", "order_products__train.csv"},
}

// tableColumns lists the columns each table accepts from a CSV header.
// Columns absent from a file load as NULL (reordered defaults to 0).
var tableColumns = map[string][]string{
	"products":       {"product_id", "product_name", "aisle_id", "department_id"},
	"departments":    {"department_id", "department"},
	"aisles":         {"aisle_id", "aisle"},
	"orders":         {"order_id", "user_id", "order_number", "order_dow", "order_hour_of_day"},
	"order_products": {"order_id", "product_id", "add_to_cart_order", "reordered"},
}

// LoadDir loads every known CSV file found in dir. Unknown files are skipped.
func (s *Store) LoadDir(ctx context.Context, dir string) error {
	loaded := 0
	for table, names := range tableFiles {
		for _, name := range names {
			path := filepath.Join(dir, name)
			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return fmt.Errorf("failed to open %s: %w", path, err)
			}

			rows, err := s.loadCSV(ctx, table, f)
			f.Close()
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", name, err)
			}
			log.Printf("Loaded %s: %d rows", name, rows)
			loaded++
			break
		}
	}
	if loaded == 0 {
		return fmt.Errorf("no dataset files found in %s", dir)
	}
	return nil
}

// LoadURL fetches the known CSV files from baseURL (a plain HTTPS directory)
// and loads them. Missing remote files are skipped, like unknown local ones.
func (s *Store) LoadURL(ctx context.Context, baseURL string, client *http.Client) error {
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimSuffix(baseURL, "/")

	loaded := 0
	for table, names := range tableFiles {
		for _, name := range names {
			rows, err := s.loadRemote(ctx, client, base+"/"+name, table)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", name, err)
			}
			if rows < 0 {
				continue
			}
			log.Printf("Downloaded %s: %d rows", name, rows)
			loaded++
			break
		}
	}
	if loaded == 0 {
		return fmt.Errorf("no dataset files found at %s", baseURL)
	}
	return nil
}

// loadRemote returns -1 when the file does not exist remotely.
func (s *Store) loadRemote(ctx context.Context, client *http.Client, url, table string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return -1, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return s.loadCSV(ctx, table, resp.Body)
}

// loadCSV loads one CSV stream into a table inside a single transaction, so
// a session never observes a half-loaded table.
func (s *Store) loadCSV(ctx context.Context, table string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	known := tableColumns[table]
	var cols []string
	var idx []int
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, k := range known {
			if h == k {
				cols = append(cols, k)
				idx = append(idx, i)
				break
			}
		}
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("no recognized columns for table %s in header %v", table, header)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read row %d: %w", rows+1, err)
		}

		args := make([]any, len(cols))
		for j, src := range idx {
			args[j] = csvValue(record[src])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", rows+1, err)
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return rows, nil
}

// csvValue keeps integers as integers so the store's comparisons behave.
func csvValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
