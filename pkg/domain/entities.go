// Package domain defines the persistent inventory entities and value types
// shared by the labcontrol core, its storage drivers and its exporters.
package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// EntityType identifies the kind of record stored in a collection.
type EntityType string

// Supported entity type identifiers used in errors and collection keys.
const (
	// EntityCatalogItem identifies a catalog item record.
	EntityCatalogItem EntityType = "catalog_item"
	// EntityBatch identifies a batch (lot) record.
	EntityBatch EntityType = "batch"
	// EntityLocation identifies a storage location record.
	EntityLocation EntityType = "location"
)

// Category classifies what kind of material or equipment a catalog item is.
type Category string

// Fixed catalog categories.
const (
	CategoryChemical       Category = "CHEMICAL"
	CategoryEquipment      Category = "EQUIPMENT"
	CategoryTool           Category = "TOOL"
	CategoryAdministrative Category = "ADMINISTRATIVE"
	CategoryGlassware      Category = "GLASSWARE"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryChemical, CategoryEquipment, CategoryTool, CategoryAdministrative, CategoryGlassware}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Unit is the measurement unit of a batch quantity.
type Unit string

// Supported units grouped by dimension.
const (
	UnitLiter      Unit = "L"
	UnitMilliliter Unit = "mL"
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitUnits      Unit = "units"
	UnitPieces     Unit = "pcs"
)

// Units lists every supported unit.
func Units() []Unit {
	return []Unit{UnitLiter, UnitMilliliter, UnitGram, UnitKilogram, UnitUnits, UnitPieces}
}

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	for _, known := range Units() {
		if u == known {
			return true
		}
	}
	return false
}

// QAStatus is the quality-assurance state of a batch.
type QAStatus string

// Canonical QA states.
const (
	QAApproved   QAStatus = "approved"
	QAQuarantine QAStatus = "quarantine"
	QARejected   QAStatus = "rejected"
	QAExpired    QAStatus = "expired"
)

// Valid reports whether s is a known QA status.
func (s QAStatus) Valid() bool {
	switch s {
	case QAApproved, QAQuarantine, QARejected, QAExpired:
		return true
	default:
		return false
	}
}

// LocationType classifies a storage location.
type LocationType string

// Known location types.
const (
	LocationRoom    LocationType = "room"
	LocationCabinet LocationType = "cabinet"
	LocationShelf   LocationType = "shelf"
	LocationFreezer LocationType = "freezer"
)

// Timestamp is a point in time encoded as Unix milliseconds, matching the
// persisted record format.
type Timestamp int64

// TimestampOf converts t to millisecond precision.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time returns the timestamp as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

// CatalogItem is a purchasable or trackable kind of material or equipment,
// independent of any physical lot.
type CatalogItem struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         Category `json:"category"`
	Subcategory      string   `json:"subcategory,omitempty"`
	CASNumber        string   `json:"casNumber,omitempty"`
	MolecularFormula string   `json:"molecularFormula,omitempty"`
	GHSPictograms    []string `json:"ghsPictograms"`
	GHSHazards       []string `json:"ghsHazards"`
	Description      string   `json:"description,omitempty"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	MinStockLevel    int      `json:"minStockLevel"`
}

// IsChemical reports whether the chemical identifiers are meaningful for the item.
func (c CatalogItem) IsChemical() bool { return c.Category == CategoryChemical }

// MatchesSearch reports whether search is a case-insensitive substring of the
// name or CAS number. Blank search matches every item.
func (c CatalogItem) MatchesSearch(search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.CASNumber), needle)
}

// Batch is a physical lot of a catalog item whose quantity depletes over time.
type Batch struct {
	ID         string     `json:"id"`
	CatalogID  string     `json:"catalogId"`
	LotNumber  string     `json:"lotNumber"`
	ExpiryDate *Timestamp `json:"expiryDate,omitempty"`
	Quantity   float64    `json:"quantity"`
	Unit       Unit       `json:"unit"`
	LocationID string     `json:"locationId"`
	QAStatus   QAStatus   `json:"qaStatus"`
}

// Expiry returns the expiry time and whether one is tracked.
func (b Batch) Expiry() (time.Time, bool) {
	if b.ExpiryDate == nil {
		return time.Time{}, false
	}
	return b.ExpiryDate.Time(), true
}

// ExpiredAt reports whether the batch has a tracked expiry strictly before now.
func (b Batch) ExpiredAt(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return int64(*b.ExpiryDate) < now.UnixMilli()
}

// ExpiringWithin reports whether the batch expires after now but less than
// window from now. Batches already past expiry are not expiring.
func (b Batch) ExpiringWithin(now time.Time, window time.Duration) bool {
	if b.ExpiryDate == nil {
		return false
	}
	expiry := int64(*b.ExpiryDate)
	nowMS := now.UnixMilli()
	return expiry > nowMS && expiry-nowMS < window.Milliseconds()
}

// UsableQuantity returns the quantity with non-finite or negative values coerced to zero.
func (b Batch) UsableQuantity() float64 {
	if math.IsNaN(b.Quantity) || math.IsInf(b.Quantity, 0) || b.Quantity < 0 {
		return 0
	}
	return b.Quantity
}

// Location is a physical storage place.
type Location struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Code string       `json:"code"`
	Type LocationType `json:"type"`
}

// InventorySummary is the derived per-item view combining the item with the
// batches referencing it and their summed quantity. It is never persisted.
type InventorySummary struct {
	CatalogItem
	TotalQuantity float64 `json:"totalQuantity"`
	Batches       []Batch `json:"batches"`
}

// LowStock reports whether the aggregate quantity is strictly below the item's minimum.
func (s InventorySummary) LowStock() bool {
	return s.TotalQuantity < float64(s.MinStockLevel)
}

// NormalizeCodes trims, upper-cases, de-duplicates and sorts GHS codes.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
