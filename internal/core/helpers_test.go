package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"labcontrol/internal/infra/persistence/memory"
)

// countingStore records every put so tests can assert on write counts.
type countingStore struct {
	*memory.Store
	mu   sync.Mutex
	puts []string
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.NewStore()}
}

func (c *countingStore) Put(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.puts = append(c.puts, key)
	c.mu.Unlock()
	return c.Store.Put(ctx, key, value)
}

func (c *countingStore) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.puts)
}

var fixedNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func newTestService(t *testing.T, opts ...Option) (*Service, *countingStore) {
	t.Helper()
	kv := newCountingStore()
	svc := NewService(kv, append([]Option{WithClock(fixedClock())}, opts...)...)
	return svc, kv
}

func newSeededService(t *testing.T, opts ...Option) (*Service, *countingStore) {
	t.Helper()
	svc, kv := newTestService(t, opts...)
	if _, err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return svc, kv
}

func ts(t time.Time) *Timestamp {
	v := Timestamp(t.UnixMilli())
	return &v
}

func chemical(id, name string, min int) CatalogItem {
	return CatalogItem{ID: id, Name: name, Category: "CHEMICAL", MinStockLevel: min}
}

func batchOf(id, catalogID string, qty float64) Batch {
	return Batch{ID: id, CatalogID: catalogID, LotNumber: "LOT-" + id, Quantity: qty, Unit: "L", LocationID: "LOC-001", QAStatus: "approved"}
}
