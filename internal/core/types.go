package core

import (
	"time"

	"labcontrol/pkg/domain"
)

type (
	EntityType       = domain.EntityType
	Category         = domain.Category
	Unit             = domain.Unit
	QAStatus         = domain.QAStatus
	LocationType     = domain.LocationType
	Timestamp        = domain.Timestamp
	CatalogItem      = domain.CatalogItem
	Batch            = domain.Batch
	Location         = domain.Location
	InventorySummary = domain.InventorySummary
	KeyValueStore    = domain.KeyValueStore
)

const (
	EntityCatalogItem = domain.EntityCatalogItem
	EntityBatch       = domain.EntityBatch
	EntityLocation    = domain.EntityLocation
)

const (
	CategoryChemical       = domain.CategoryChemical
	CategoryEquipment      = domain.CategoryEquipment
	CategoryTool           = domain.CategoryTool
	CategoryAdministrative = domain.CategoryAdministrative
	CategoryGlassware      = domain.CategoryGlassware

	UnitLiter      = domain.UnitLiter
	UnitMilliliter = domain.UnitMilliliter
	UnitGram       = domain.UnitGram
	UnitKilogram   = domain.UnitKilogram
	UnitUnits      = domain.UnitUnits
	UnitPieces     = domain.UnitPieces

	QAApproved   = domain.QAApproved
	QAQuarantine = domain.QAQuarantine
	QARejected   = domain.QARejected
	QAExpired    = domain.QAExpired
)

// TimestampOf converts t to a millisecond timestamp.
func TimestampOf(t time.Time) Timestamp { return domain.TimestampOf(t) }
