package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/curately/pricesync/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id                 TEXT PRIMARY KEY,
	asin               TEXT NOT NULL DEFAULT '',
	price              TEXT,
	currency           TEXT NOT NULL DEFAULT 'USD',
	price_last_updated TIMESTAMP,
	price_sync_status  TEXT NOT NULL DEFAULT '',
	price_sync_error   TEXT NOT NULL DEFAULT ''
)`

// SQLite is a file-backed ProductStore for single-node deployments. It
// mirrors the Postgres schema and semantics.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating when absent) the database at path and ensures
// the schema.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure products schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Seed inserts products, skipping IDs that already exist.
func (s *SQLite) Seed(ctx context.Context, products []models.Product) (int, error) {
	inserted := 0
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO products (id, asin, price, currency, price_last_updated, price_sync_status, price_sync_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ASIN, p.Price, p.Currency, p.PriceLastUpdated, p.PriceSyncStatus, p.PriceSyncError,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed products: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

func (s *SQLite) ListProductsForSync(ctx context.Context, limit int) ([]models.Product, error) {
	query := `SELECT id, asin, price, currency, price_last_updated, price_sync_status, price_sync_error
		FROM products
		WHERE asin <> ''
		ORDER BY price_last_updated IS NOT NULL, price_last_updated ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ASIN, &p.Price, &p.Currency, &p.PriceLastUpdated, &p.PriceSyncStatus, &p.PriceSyncError); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *SQLite) UpdateProductPrice(ctx context.Context, productID, price, currency string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET price = ?, currency = ?, price_last_updated = CURRENT_TIMESTAMP,
		     price_sync_status = ?, price_sync_error = ''
		 WHERE id = ?`,
		price, currency, models.SyncStatusSuccess, productID,
	)
	if err != nil {
		return fmt.Errorf("update price for %s: %w", productID, err)
	}
	return requireRow(res, productID)
}

func (s *SQLite) MarkPriceSyncFailed(ctx context.Context, productID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET price_sync_status = ?, price_sync_error = ? WHERE id = ?`,
		models.SyncStatusFailed, message, productID,
	)
	if err != nil {
		return fmt.Errorf("mark sync failed for %s: %w", productID, err)
	}
	return requireRow(res, productID)
}

func (s *SQLite) MarkPriceSyncPending(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET price_sync_status = ? WHERE id = ?`,
		models.SyncStatusPending, productID,
	)
	if err != nil {
		return fmt.Errorf("mark sync pending for %s: %w", productID, err)
	}
	return requireRow(res, productID)
}

func requireRow(res sql.Result, productID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil // driver cannot report; treat as applied
	}
	if n == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}
