// Package store defines the product persistence contract the sync
// orchestrator writes through, plus memory, Postgres, and SQLite
// implementations.
package store

import (
	"context"

	"github.com/curately/pricesync/models"
)

// ProductStore is the narrow contract the orchestrator consumes. Writes are
// fire-and-forget from the orchestrator's perspective: a failure here is
// logged and recorded, never retried.
type ProductStore interface {
	// ListProductsForSync returns up to limit products that carry an ASIN,
	// oldest price first. limit <= 0 means no cap.
	ListProductsForSync(ctx context.Context, limit int) ([]models.Product, error)

	// UpdateProductPrice records a fresh price, stamps the update time, and
	// clears any prior sync error.
	UpdateProductPrice(ctx context.Context, productID, price, currency string) error

	// MarkPriceSyncFailed records a sync failure with a descriptive message.
	MarkPriceSyncFailed(ctx context.Context, productID, message string) error

	// MarkPriceSyncPending marks a product as queued for sync.
	MarkPriceSyncPending(ctx context.Context, productID string) error
}
