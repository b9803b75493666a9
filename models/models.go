// Package models defines data structures shared across the sync pipeline.
package models

import "time"

// Product sync status values stored on a product record.
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusPending = "pending"
)

// Execution status values derived from per-product outcomes.
const (
	ExecutionSuccess = "success"
	ExecutionPartial = "partial"
	ExecutionFailed  = "failed"
)

// Product is the price-bearing slice of a stored product record. The sync
// subsystem never creates or deletes products; it only mutates the price
// fields through the store contract.
type Product struct {
	ID               string     `json:"product_id"`
	ASIN             string     `json:"asin"`
	Price            *string    `json:"price"`
	Currency         string     `json:"currency"`
	PriceLastUpdated *time.Time `json:"price_last_updated,omitempty"`
	PriceSyncStatus  string     `json:"price_sync_status,omitempty"`
	PriceSyncError   string     `json:"price_sync_error,omitempty"`
}

// ProductInfo is one item returned from a PA-API batch lookup. Price is nil
// when the upstream item carried no offer listing.
type ProductInfo struct {
	ASIN      string  `json:"asin"`
	Price     *string `json:"price"`
	Currency  string  `json:"currency"`
	Available bool    `json:"availability"`
	Title     string  `json:"title"`
	ImageURL  string  `json:"image_url"`
}

// SyncError records one per-product failure inside an execution.
type SyncError struct {
	ProductID    string `json:"product_id"`
	ASIN         string `json:"asin"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    string `json:"error_code"`
}

// SyncExecution holds the overall result of one sync run. It is emitted as a
// structured log record for the reporting path rather than persisted here.
type SyncExecution struct {
	ExecutionID   string      `json:"execution_id"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
	DurationMs    int64       `json:"duration_ms"`
	TotalProducts int         `json:"total_products"`
	SuccessCount  int         `json:"success_count"`
	FailureCount  int         `json:"failure_count"`
	SkippedCount  int         `json:"skipped_count"`
	Status        string      `json:"status"`
	Errors        []SyncError `json:"errors,omitempty"`
}

// DeriveStatus maps aggregate counts to an execution status: success when
// nothing failed, partial when some products succeeded and some failed, and
// failed otherwise.
func DeriveStatus(total, success, failure, skipped int) string {
	if failure == 0 {
		return ExecutionSuccess
	}
	if success > 0 && failure < total-skipped {
		return ExecutionPartial
	}
	return ExecutionFailed
}
