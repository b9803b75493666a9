package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/curately/pricesync/models"
)

// Memory is an in-process ProductStore for tests and dry runs.
type Memory struct {
	mu       sync.RWMutex
	products map[string]models.Product
	order    []string
	now      func() time.Time
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]models.Product),
		now:      time.Now,
	}
}

// Seed inserts or replaces products, preserving insertion order for listing.
func (m *Memory) Seed(products []models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if _, exists := m.products[p.ID]; !exists {
			m.order = append(m.order, p.ID)
		}
		m.products[p.ID] = p
	}
}

// Get returns a product snapshot by ID.
func (m *Memory) Get(id string) (models.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok
}

func (m *Memory) ListProductsForSync(_ context.Context, limit int) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.order))
	for _, id := range m.order {
		p := m.products[id]
		if p.ASIN == "" {
			continue
		}
		out = append(out, p)
	}
	// Oldest price first; never-updated products lead.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PriceLastUpdated, out[j].PriceLastUpdated
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateProductPrice(_ context.Context, productID, price, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %s not found", productID)
	}
	now := m.now()
	p.Price = &price
	p.Currency = currency
	p.PriceLastUpdated = &now
	p.PriceSyncStatus = models.SyncStatusSuccess
	p.PriceSyncError = ""
	m.products[productID] = p
	return nil
}

func (m *Memory) MarkPriceSyncFailed(_ context.Context, productID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %s not found", productID)
	}
	p.PriceSyncStatus = models.SyncStatusFailed
	p.PriceSyncError = message
	m.products[productID] = p
	return nil
}

func (m *Memory) MarkPriceSyncPending(_ context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %s not found", productID)
	}
	p.PriceSyncStatus = models.SyncStatusPending
	m.products[productID] = p
	return nil
}
