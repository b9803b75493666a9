package store

import (
	"context"
	"testing"
	"time"

	"github.com/curately/pricesync/models"
)

func seedProducts() []models.Product {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []models.Product{
		{ID: "p1", ASIN: "B000000001", Currency: "USD", PriceLastUpdated: &recent},
		{ID: "p2", ASIN: "B000000002", Currency: "USD", PriceLastUpdated: &old},
		{ID: "p3", ASIN: "B000000003", Currency: "USD"},
		{ID: "p4", ASIN: "", Currency: "USD"},
	}
}

func TestMemoryListOrdersOldestFirst(t *testing.T) {
	m := NewMemory()
	m.Seed(seedProducts())

	got, err := m.ListProductsForSync(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("listed %d products, want 3 (asin-less excluded)", len(got))
	}
	wantOrder := []string{"p3", "p2", "p1"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMemoryListHonorsLimit(t *testing.T) {
	m := NewMemory()
	m.Seed(seedProducts())

	got, err := m.ListProductsForSync(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d products, want 2", len(got))
	}
}

func TestMemoryStatusTransitions(t *testing.T) {
	m := NewMemory()
	m.Seed(seedProducts())
	ctx := context.Background()

	if err := m.MarkPriceSyncPending(ctx, "p1"); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	p, _ := m.Get("p1")
	if p.PriceSyncStatus != models.SyncStatusPending {
		t.Fatalf("status = %q, want pending", p.PriceSyncStatus)
	}

	if err := m.MarkPriceSyncFailed(ctx, "p1", "no data returned"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	p, _ = m.Get("p1")
	if p.PriceSyncStatus != models.SyncStatusFailed || p.PriceSyncError != "no data returned" {
		t.Fatalf("status/error = %q/%q, want failed/no data returned", p.PriceSyncStatus, p.PriceSyncError)
	}

	if err := m.UpdateProductPrice(ctx, "p1", "19.99", "USD"); err != nil {
		t.Fatalf("update price: %v", err)
	}
	p, _ = m.Get("p1")
	if p.PriceSyncStatus != models.SyncStatusSuccess {
		t.Fatalf("status = %q, want success", p.PriceSyncStatus)
	}
	if p.Price == nil || *p.Price != "19.99" {
		t.Fatalf("price = %v, want 19.99", p.Price)
	}
	if p.PriceSyncError != "" {
		t.Fatalf("prior error not cleared: %q", p.PriceSyncError)
	}
	if p.PriceLastUpdated == nil {
		t.Fatalf("price_last_updated not stamped")
	}
}

func TestMemoryUnknownProduct(t *testing.T) {
	m := NewMemory()
	if err := m.UpdateProductPrice(context.Background(), "missing", "1.00", "USD"); err == nil {
		t.Fatalf("expected error for unknown product")
	}
	if err := m.MarkPriceSyncFailed(context.Background(), "missing", "x"); err == nil {
		t.Fatalf("expected error for unknown product")
	}
	if err := m.MarkPriceSyncPending(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown product")
	}
}
