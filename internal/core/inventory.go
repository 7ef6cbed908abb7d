package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"labcontrol/pkg/domain"
)

// Placeholder names used when a batch reference does not resolve.
const (
	UnknownItemName     = "Unknown item"
	UnknownLocationName = "Unknown location"
)

// Summarize joins each catalog item with its batches. Batches are grouped in a
// single pass; output follows catalog order and batch order within an item
// follows stored order. Duplicate catalog ids each receive the full group.
func Summarize(catalog []CatalogItem, batches []Batch) []InventorySummary {
	groups := make(map[string][]Batch, len(catalog))
	for _, b := range batches {
		groups[b.CatalogID] = append(groups[b.CatalogID], b)
	}
	out := make([]InventorySummary, 0, len(catalog))
	for _, item := range catalog {
		group := groups[item.ID]
		total := decimal.Zero
		for _, b := range group {
			total = total.Add(decimal.NewFromFloat(b.UsableQuantity()))
		}
		itemBatches := make([]Batch, len(group))
		copy(itemBatches, group)
		out = append(out, InventorySummary{
			CatalogItem:   item,
			TotalQuantity: total.InexactFloat64(),
			Batches:       itemBatches,
		})
	}
	return out
}

// FilterLowStock returns the summaries below their minimum stock level.
func FilterLowStock(summaries []InventorySummary) []InventorySummary {
	out := []InventorySummary{}
	for _, s := range summaries {
		if s.LowStock() {
			out = append(out, s)
		}
	}
	return out
}

// FilterCatalog keeps the summaries whose item name or CAS number contains
// search, ignoring case. Order is preserved.
func FilterCatalog(summaries []InventorySummary, search string) []InventorySummary {
	out := []InventorySummary{}
	for _, s := range summaries {
		if s.MatchesSearch(search) {
			out = append(out, s)
		}
	}
	return out
}

// FilterCatalogItems is FilterCatalog for plain catalog items.
func FilterCatalogItems(items []CatalogItem, search string) []CatalogItem {
	out := []CatalogItem{}
	for _, item := range items {
		if item.MatchesSearch(search) {
			out = append(out, item)
		}
	}
	return out
}

// FilterExpiringSoon returns batches expiring after now and within window.
func FilterExpiringSoon(batches []Batch, now time.Time, window time.Duration) []Batch {
	out := []Batch{}
	for _, b := range batches {
		if b.ExpiringWithin(now, window) {
			out = append(out, b)
		}
	}
	return out
}

// FilterExpired returns batches whose expiry is before now.
func FilterExpired(batches []Batch, now time.Time) []Batch {
	out := []Batch{}
	for _, b := range batches {
		if b.ExpiredAt(now) {
			out = append(out, b)
		}
	}
	return out
}

// DashboardStats are the headline inventory counters.
type DashboardStats struct {
	TotalItems     int              `json:"totalItems"`
	TotalChemicals int              `json:"totalChemicals"`
	ExpiringSoon   int              `json:"expiringSoon"`
	Expired        int              `json:"expired"`
	LowStock       int              `json:"lowStock"`
	ByCategory     map[Category]int `json:"byCategory"`
}

// ComputeDashboard derives dashboard counters. Every known category is present
// in ByCategory, including those with no items.
func ComputeDashboard(catalog []CatalogItem, batches []Batch, now time.Time, window time.Duration) DashboardStats {
	stats := DashboardStats{
		TotalItems: len(catalog),
		ByCategory: make(map[Category]int, len(domain.Categories())),
	}
	for _, c := range domain.Categories() {
		stats.ByCategory[c] = 0
	}
	for _, item := range catalog {
		if item.IsChemical() {
			stats.TotalChemicals++
		}
		stats.ByCategory[item.Category]++
	}
	stats.ExpiringSoon = len(FilterExpiringSoon(batches, now, window))
	stats.Expired = len(FilterExpired(batches, now))
	stats.LowStock = len(FilterLowStock(Summarize(catalog, batches)))
	return stats
}

// LocationGroup lists the batches stored at one location.
type LocationGroup struct {
	Location Location `json:"location"`
	Batches  []Batch  `json:"batches"`
}

// GroupByLocation returns one group per location in stored order. Batches
// pointing at unknown locations are omitted; see FindDangling.
func GroupByLocation(locations []Location, batches []Batch) []LocationGroup {
	byLocation := make(map[string][]Batch, len(locations))
	for _, b := range batches {
		byLocation[b.LocationID] = append(byLocation[b.LocationID], b)
	}
	out := make([]LocationGroup, 0, len(locations))
	for _, loc := range locations {
		group := byLocation[loc.ID]
		if group == nil {
			group = []Batch{}
		}
		out = append(out, LocationGroup{Location: loc, Batches: group})
	}
	return out
}

// BatchRow is a batch resolved against its catalog item and location.
type BatchRow struct {
	Batch
	ItemName     string `json:"itemName"`
	LocationName string `json:"locationName"`
	Expired      bool   `json:"expired"`
}

// BuildBatchRows joins batches with item and location names. A non-empty
// search keeps rows whose item name or lot number contains it, ignoring case.
func BuildBatchRows(catalog []CatalogItem, locations []Location, batches []Batch, search string, now time.Time) []BatchRow {
	names := make(map[string]string, len(catalog))
	for _, item := range catalog {
		if _, ok := names[item.ID]; !ok {
			names[item.ID] = item.Name
		}
	}
	places := make(map[string]string, len(locations))
	for _, loc := range locations {
		if _, ok := places[loc.ID]; !ok {
			places[loc.ID] = loc.Name
		}
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	out := []BatchRow{}
	for _, b := range batches {
		row := BatchRow{Batch: b, ItemName: UnknownItemName, LocationName: UnknownLocationName, Expired: b.ExpiredAt(now)}
		if name, ok := names[b.CatalogID]; ok {
			row.ItemName = name
		}
		if name, ok := places[b.LocationID]; ok {
			row.LocationName = name
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(row.ItemName), needle) &&
			!strings.Contains(strings.ToLower(b.LotNumber), needle) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// DanglingBatch is a batch with at least one unresolved reference.
type DanglingBatch struct {
	Batch           Batch `json:"batch"`
	MissingCatalog  bool  `json:"missingCatalog"`
	MissingLocation bool  `json:"missingLocation"`
}

// FindDangling reports batches whose catalog item or location does not exist.
func FindDangling(catalog []CatalogItem, locations []Location, batches []Batch) []DanglingBatch {
	items := make(map[string]struct{}, len(catalog))
	for _, item := range catalog {
		items[item.ID] = struct{}{}
	}
	places := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		places[loc.ID] = struct{}{}
	}
	out := []DanglingBatch{}
	for _, b := range batches {
		_, hasItem := items[b.CatalogID]
		_, hasPlace := places[b.LocationID]
		if hasItem && hasPlace {
			continue
		}
		out = append(out, DanglingBatch{Batch: b, MissingCatalog: !hasItem, MissingLocation: !hasPlace})
	}
	return out
}

// Snapshot is a consistent read of all three collections.
type Snapshot struct {
	Catalog   []CatalogItem
	Batches   []Batch
	Locations []Location
}

// Snapshot reads every collection under one lock.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.read(ctx, opSnapshot, func(ctx context.Context) error {
		var err error
		snap, err = s.snapshot(ctx)
		return err
	})
	return snap, err
}

func (s *Service) snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Catalog, err = ReadCollection[CatalogItem](ctx, s.records, s.keys.Catalog); err != nil {
		return Snapshot{}, err
	}
	if snap.Batches, err = ReadCollection[Batch](ctx, s.records, s.keys.Batches); err != nil {
		return Snapshot{}, err
	}
	if snap.Locations, err = ReadCollection[Location](ctx, s.records, s.keys.Locations); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// InventorySummary reads the catalog and batches and joins them.
func (s *Service) InventorySummary(ctx context.Context) ([]InventorySummary, error) {
	var out []InventorySummary
	err := s.read(ctx, opSummarize, func(ctx context.Context) error {
		catalog, err := ReadCollection[CatalogItem](ctx, s.records, s.keys.Catalog)
		if err != nil {
			return err
		}
		batches, err := ReadCollection[Batch](ctx, s.records, s.keys.Batches)
		if err != nil {
			return err
		}
		out = Summarize(catalog, batches)
		return nil
	})
	return out, err
}

// LowStock returns summaries whose total is below the item minimum.
func (s *Service) LowStock(ctx context.Context) ([]InventorySummary, error) {
	summaries, err := s.InventorySummary(ctx)
	if err != nil {
		return nil, err
	}
	low := FilterLowStock(summaries)
	if rep, ok := s.metrics.(lowStockReporter); ok {
		rep.SetLowStock(len(low))
	}
	return low, nil
}

// ExpiringSoon returns batches expiring within the configured window.
func (s *Service) ExpiringSoon(ctx context.Context) ([]Batch, error) {
	batches, err := s.Batches(ctx)
	if err != nil {
		return nil, err
	}
	return FilterExpiringSoon(batches, s.clock.Now(), s.expiryWindow), nil
}

// Expired returns batches already past their expiry date.
func (s *Service) Expired(ctx context.Context) ([]Batch, error) {
	batches, err := s.Batches(ctx)
	if err != nil {
		return nil, err
	}
	return FilterExpired(batches, s.clock.Now()), nil
}

// Dashboard computes the headline counters and refreshes the low stock gauge.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := s.read(ctx, opDashboard, func(ctx context.Context) error {
		snap, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		stats = ComputeDashboard(snap.Catalog, snap.Batches, s.clock.Now(), s.expiryWindow)
		return nil
	})
	if err != nil {
		return DashboardStats{}, err
	}
	if rep, ok := s.metrics.(lowStockReporter); ok {
		rep.SetLowStock(stats.LowStock)
	}
	return stats, nil
}

// BatchesByLocation groups batches under their storage locations.
func (s *Service) BatchesByLocation(ctx context.Context) ([]LocationGroup, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByLocation(snap.Locations, snap.Batches), nil
}

// BatchRows returns resolved batch rows filtered by search.
func (s *Service) BatchRows(ctx context.Context, search string) ([]BatchRow, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildBatchRows(snap.Catalog, snap.Locations, snap.Batches, search, s.clock.Now()), nil
}

// DanglingBatches lists batches with unresolved references. Nothing is repaired.
func (s *Service) DanglingBatches(ctx context.Context) ([]DanglingBatch, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FindDangling(snap.Catalog, snap.Locations, snap.Batches), nil
}
