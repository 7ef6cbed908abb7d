package core

import (
	"context"
	"testing"
)

func TestInitSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc, kv := newTestService(t)
	written, err := svc.Init(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(written) != 3 || kv.putCount() != 3 {
		t.Fatalf("expected three seeded keys, got %v (puts %d)", written, kv.putCount())
	}
	if written[0] != svc.Keys().Catalog || written[1] != svc.Keys().Batches || written[2] != svc.Keys().Locations {
		t.Fatalf("unexpected seed order %v", written)
	}

	catalog, _ := svc.Catalog(ctx)
	if len(catalog) != 3 || catalog[0].Name != "Acetone" || catalog[2].Name != "Beaker 500mL" {
		t.Fatalf("unexpected seeded catalog %+v", catalog)
	}
	batches, _ := svc.Batches(ctx)
	if len(batches) != 2 || batches[1].LotNumber != "L2024-SA" {
		t.Fatalf("unexpected seeded batches %+v", batches)
	}
	locations, _ := svc.Locations(ctx)
	if len(locations) != 3 || locations[2].Code != "FRZ-01" {
		t.Fatalf("unexpected seeded locations %+v", locations)
	}
}

func TestInitLeavesPopulatedStoreUntouched(t *testing.T) {
	ctx := context.Background()
	svc, kv := newSeededService(t)
	before := kv.putCount()
	written, err := svc.Init(ctx)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if len(written) != 0 || kv.putCount() != before {
		t.Fatalf("expected zero writes, got %v", written)
	}
}

func TestInitOnlyFillsAbsentKeys(t *testing.T) {
	ctx := context.Background()
	svc, kv := newTestService(t)
	if err := kv.Store.Put(ctx, svc.Keys().Batches, []byte("[]")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Store.Put(ctx, svc.Keys().Locations, []byte("garbage")); err != nil {
		t.Fatalf("put: %v", err)
	}
	written, err := svc.Init(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(written) != 1 || written[0] != svc.Keys().Catalog {
		t.Fatalf("expected only catalog seeded, got %v", written)
	}
	batches, _ := svc.Batches(ctx)
	if len(batches) != 0 {
		t.Fatalf("present empty batches were overwritten: %+v", batches)
	}
}

func TestInitWithCustomSeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithSeedData(SeedData{Catalog: []CatalogItem{chemical("C1", "Ethanol", 1)}}), WithKeyPrefix("alt"))
	if _, err := svc.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	catalog, _ := svc.Catalog(ctx)
	if len(catalog) != 1 || catalog[0].Name != "Ethanol" {
		t.Fatalf("unexpected catalog %+v", catalog)
	}
	locations, _ := svc.Locations(ctx)
	if len(locations) != 0 {
		t.Fatalf("expected empty locations, got %+v", locations)
	}
	if svc.Keys().Catalog != "alt_catalog" {
		t.Fatalf("unexpected key %s", svc.Keys().Catalog)
	}
}

func TestDefaultSeedIsFreshCopy(t *testing.T) {
	a := DefaultSeed()
	a.Catalog[0].Name = "changed"
	if DefaultSeed().Catalog[0].Name != "Acetone" {
		t.Fatalf("default seed shared state between calls")
	}
}

func TestInitWithCatalogPresentWritesBatchesAndLocations(t *testing.T) {
	ctx := context.Background()
	svc, kv := newTestService(t)
	if err := kv.Store.Put(ctx, svc.Keys().Catalog, []byte(`[{"id":"X","name":"Existing","category":"TOOL","ghsPictograms":[],"ghsHazards":[],"minStockLevel":0}]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	written, err := svc.Init(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if len(written) != 2 || written[0] != svc.Keys().Batches || written[1] != svc.Keys().Locations || kv.putCount() != 2 {
		t.Fatalf("expected batches and locations only, got %v", written)
	}
	catalog, _ := svc.Catalog(ctx)
	if len(catalog) != 1 || catalog[0].Name != "Existing" {
		t.Fatalf("catalog was modified: %+v", catalog)
	}
}
