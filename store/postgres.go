package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curately/pricesync/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id                 TEXT PRIMARY KEY,
	asin               TEXT NOT NULL DEFAULT '',
	price              TEXT,
	currency           TEXT NOT NULL DEFAULT 'USD',
	price_last_updated TIMESTAMPTZ,
	price_sync_status  TEXT NOT NULL DEFAULT '',
	price_sync_error   TEXT NOT NULL DEFAULT ''
)`

// Postgres is a pgx-backed ProductStore.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to dsn. maxConns <= 0 falls back to 2.
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the products table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure products schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Seed batch-inserts products, skipping IDs that already exist.
func (s *Postgres) Seed(ctx context.Context, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	count := 0
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		batch.Queue(
			`INSERT INTO products (id, asin, price, currency, price_last_updated, price_sync_status, price_sync_error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, p.ASIN, p.Price, p.Currency, p.PriceLastUpdated, p.PriceSyncStatus, p.PriceSyncError,
		)
		count++
	}

	results := s.pool.SendBatch(ctx, batch)
	inserted := 0
	for i := 0; i < count; i++ {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return inserted, fmt.Errorf("seed products: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return inserted, fmt.Errorf("seed products: %w", err)
	}
	return inserted, nil
}

func (s *Postgres) ListProductsForSync(ctx context.Context, limit int) ([]models.Product, error) {
	query := `SELECT id, asin, price, currency, price_last_updated, price_sync_status, price_sync_error
		FROM products
		WHERE asin <> ''
		ORDER BY price_last_updated ASC NULLS FIRST, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Postgres) UpdateProductPrice(ctx context.Context, productID, price, currency string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products
		 SET price = $2, currency = $3, price_last_updated = now(),
		     price_sync_status = $4, price_sync_error = ''
		 WHERE id = $1`,
		productID, price, currency, models.SyncStatusSuccess,
	)
	if err != nil {
		return fmt.Errorf("update price for %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}

func (s *Postgres) MarkPriceSyncFailed(ctx context.Context, productID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET price_sync_status = $2, price_sync_error = $3 WHERE id = $1`,
		productID, models.SyncStatusFailed, message,
	)
	if err != nil {
		return fmt.Errorf("mark sync failed for %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}

func (s *Postgres) MarkPriceSyncPending(ctx context.Context, productID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET price_sync_status = $2 WHERE id = $1`,
		productID, models.SyncStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark sync pending for %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}
