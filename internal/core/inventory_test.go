package core

import (
	"context"
	"testing"
	"time"
)

func TestSummarizeGroupsInCatalogOrder(t *testing.T) {
	catalog := []CatalogItem{chemical("A", "Alpha", 5), chemical("B", "Beta", 1), chemical("C", "Gamma", 0)}
	batches := []Batch{
		batchOf("b1", "B", 2),
		batchOf("a1", "A", 0.1),
		batchOf("x1", "missing", 100),
		batchOf("a2", "A", 0.2),
	}
	got := Summarize(catalog, batches)
	if len(got) != 3 {
		t.Fatalf("expected one summary per item, got %d", len(got))
	}
	if got[0].ID != "A" || got[1].ID != "B" || got[2].ID != "C" {
		t.Fatalf("summary order must follow catalog order: %+v", got)
	}
	if got[0].TotalQuantity != 0.3 {
		t.Fatalf("expected exact 0.3 total, got %v", got[0].TotalQuantity)
	}
	if len(got[0].Batches) != 2 || got[0].Batches[0].ID != "a1" || got[0].Batches[1].ID != "a2" {
		t.Fatalf("batch order must follow stored order: %+v", got[0].Batches)
	}
	if got[2].TotalQuantity != 0 || got[2].Batches == nil || len(got[2].Batches) != 0 {
		t.Fatalf("item without batches should have zero total and empty list: %+v", got[2])
	}
}

func TestSummarizeCoercesNegativeQuantities(t *testing.T) {
	got := Summarize([]CatalogItem{chemical("A", "Alpha", 1)}, []Batch{batchOf("a1", "A", -4), batchOf("a2", "A", 2)})
	if got[0].TotalQuantity != 2 {
		t.Fatalf("expected negative quantity coerced to zero, got %v", got[0].TotalQuantity)
	}
}

func TestSummarizeDuplicateCatalogIDsShareGroup(t *testing.T) {
	catalog := []CatalogItem{chemical("A", "Alpha", 1), chemical("A", "Alpha copy", 1)}
	got := Summarize(catalog, []Batch{batchOf("a1", "A", 3)})
	if got[0].TotalQuantity != 3 || got[1].TotalQuantity != 3 {
		t.Fatalf("expected both duplicates to receive the group, got %+v", got)
	}
}

func TestLowStockIsStrict(t *testing.T) {
	catalog := []CatalogItem{chemical("eq", "Equal", 2), chemical("below", "Below", 2), chemical("zero", "Zero", 0)}
	batches := []Batch{batchOf("1", "eq", 2), batchOf("2", "below", 1.5)}
	low := FilterLowStock(Summarize(catalog, batches))
	if len(low) != 1 || low[0].ID != "below" {
		t.Fatalf("expected only 'below' flagged, got %+v", low)
	}
}

func TestExpiryBoundaries(t *testing.T) {
	window := DefaultExpiryWindow
	cases := []struct {
		name     string
		expiry   *Timestamp
		expiring bool
		expired  bool
	}{
		{"no expiry", nil, false, false},
		{"just inside window", ts(fixedNow.Add(window - time.Millisecond)), true, false},
		{"exactly at window", ts(fixedNow.Add(window)), false, false},
		{"exactly now", ts(fixedNow), false, false},
		{"one ms past", ts(fixedNow.Add(-time.Millisecond)), false, true},
		{"tomorrow", ts(fixedNow.Add(24 * time.Hour)), true, false},
	}
	for _, tc := range cases {
		b := batchOf("b", "c", 1)
		b.ExpiryDate = tc.expiry
		if got := len(FilterExpiringSoon([]Batch{b}, fixedNow, window)) == 1; got != tc.expiring {
			t.Fatalf("%s: expiring=%v, want %v", tc.name, got, tc.expiring)
		}
		if got := len(FilterExpired([]Batch{b}, fixedNow)) == 1; got != tc.expired {
			t.Fatalf("%s: expired=%v, want %v", tc.name, got, tc.expired)
		}
	}
}

func TestServiceAggregations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSeededService(t, WithExpiryWindow(90*24*time.Hour))

	summaries, err := svc.InventorySummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summaries) != 3 || summaries[0].TotalQuantity != 4 || summaries[2].TotalQuantity != 0 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	low, err := svc.LowStock(ctx)
	if err != nil || len(low) != 3 {
		t.Fatalf("expected all seeded items low, got %d %v", len(low), err)
	}

	expiring, err := svc.ExpiringSoon(ctx)
	if err != nil || len(expiring) != 1 || expiring[0].ID != "BAT-002" {
		t.Fatalf("expected BAT-002 expiring within 90 days, got %+v %v", expiring, err)
	}
	expired, err := svc.Expired(ctx)
	if err != nil || len(expired) != 0 {
		t.Fatalf("expected no expired batches, got %+v %v", expired, err)
	}
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSeededService(t)
	stats, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalItems != 3 || stats.TotalChemicals != 2 || stats.LowStock != 3 || stats.ExpiringSoon != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByCategory["CHEMICAL"] != 2 || stats.ByCategory["GLASSWARE"] != 1 {
		t.Fatalf("unexpected category counts %+v", stats.ByCategory)
	}
	if n, ok := stats.ByCategory["TOOL"]; !ok || n != 0 {
		t.Fatalf("expected empty categories reported as zero")
	}
}

func TestBatchRowsJoinAndSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSeededService(t)
	orphan := batchOf("BAT-9", "CAT-404", 1)
	orphan.LocationID = "LOC-404"
	orphan.LotNumber = "ORPH-1"
	orphan.ExpiryDate = ts(fixedNow.Add(-time.Hour))
	if _, err := svc.AddBatch(ctx, orphan); err != nil {
		t.Fatalf("add: %v", err)
	}

	rows, err := svc.BatchRows(ctx, "")
	if err != nil || len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d %v", len(rows), err)
	}
	if rows[0].ItemName != "Acetone" || rows[0].LocationName != "Flammables Cabinet" {
		t.Fatalf("unexpected join %+v", rows[0])
	}
	if rows[2].ItemName != UnknownItemName || rows[2].LocationName != UnknownLocationName || !rows[2].Expired {
		t.Fatalf("expected placeholders and expired flag, got %+v", rows[2])
	}

	rows, _ = svc.BatchRows(ctx, "sulfuric")
	if len(rows) != 1 || rows[0].ID != "BAT-002" {
		t.Fatalf("expected name search match, got %+v", rows)
	}
	rows, _ = svc.BatchRows(ctx, "l2023")
	if len(rows) != 1 || rows[0].ID != "BAT-001" {
		t.Fatalf("expected lot search match, got %+v", rows)
	}
	rows, _ = svc.BatchRows(ctx, "unknown")
	if len(rows) != 1 || rows[0].ID != "BAT-9" {
		t.Fatalf("expected placeholder name to be searchable, got %+v", rows)
	}
}

func TestBatchesByLocation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSeededService(t)
	groups, err := svc.BatchesByLocation(ctx)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(groups) != 3 || groups[0].Location.ID != "LOC-001" {
		t.Fatalf("expected groups in location order, got %+v", groups)
	}
	if len(groups[0].Batches) != 0 || len(groups[1].Batches) != 2 || len(groups[2].Batches) != 0 {
		t.Fatalf("unexpected grouping %+v", groups)
	}
}

func TestFindDanglingBothReferences(t *testing.T) {
	b := batchOf("b", "nope", 1)
	b.LocationID = "nowhere"
	got := FindDangling(nil, nil, []Batch{b})
	if len(got) != 1 || !got[0].MissingCatalog || !got[0].MissingLocation {
		t.Fatalf("unexpected dangling result %+v", got)
	}
}

func TestFilterCatalogByNameOrCAS(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSeededService(t)
	summaries, err := svc.InventorySummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	cases := []struct {
		search string
		want   []string
	}{
		{"", []string{"CAT-001", "CAT-002", "CAT-003"}},
		{"ACID", []string{"CAT-002"}},
		{"67-64", []string{"CAT-001"}},
		{" beaker ", []string{"CAT-003"}},
		{"nothing", nil},
	}
	catalog, _ := svc.Catalog(ctx)
	for _, tc := range cases {
		got := FilterCatalog(summaries, tc.search)
		items := FilterCatalogItems(catalog, tc.search)
		if len(got) != len(tc.want) || len(items) != len(tc.want) {
			t.Fatalf("%q: got %d summaries and %d items, want %d", tc.search, len(got), len(items), len(tc.want))
		}
		for i, id := range tc.want {
			if got[i].ID != id || items[i].ID != id {
				t.Fatalf("%q: position %d is %s/%s, want %s", tc.search, i, got[i].ID, items[i].ID, id)
			}
		}
		if got == nil || items == nil {
			t.Fatalf("%q: filters must return non-nil slices", tc.search)
		}
	}
	if len(FilterCatalog(summaries, "acetone")[0].Batches) != 1 {
		t.Fatalf("filtered summaries should keep their batches")
	}
}
