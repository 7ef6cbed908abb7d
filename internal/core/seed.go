package core

import (
	"context"
	"time"

	"labcontrol/pkg/domain"
)

// SeedData is the dataset Init writes into empty collections.
type SeedData struct {
	Catalog   []CatalogItem
	Batches   []Batch
	Locations []Location
}

func expiry(year int, month time.Month, day int) *Timestamp {
	ts := domain.TimestampOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	return &ts
}

// DefaultSeed returns a fresh copy of the starter dataset.
func DefaultSeed() SeedData {
	return SeedData{
		Catalog: []CatalogItem{
			{
				ID:               "CAT-001",
				Name:             "Acetone",
				Category:         domain.CategoryChemical,
				CASNumber:        "67-64-1",
				MolecularFormula: "C3H6O",
				GHSPictograms:    []string{"GHS02", "GHS07"},
				GHSHazards:       []string{"H225", "H319", "H336"},
				Description:      "Common organic solvent.",
				MinStockLevel:    5,
			},
			{
				ID:               "CAT-002",
				Name:             "Sulfuric Acid",
				Category:         domain.CategoryChemical,
				CASNumber:        "7664-93-9",
				MolecularFormula: "H2SO4",
				GHSPictograms:    []string{"GHS05"},
				GHSHazards:       []string{"H314"},
				Description:      "Strong mineral acid.",
				MinStockLevel:    2,
			},
			{
				ID:            "CAT-003",
				Name:          "Beaker 500mL",
				Category:      domain.CategoryGlassware,
				GHSPictograms: []string{},
				GHSHazards:    []string{},
				Description:   "Borosilicate glass beaker.",
				MinStockLevel: 10,
			},
		},
		Batches: []Batch{
			{
				ID:         "BAT-001",
				CatalogID:  "CAT-001",
				LotNumber:  "L2023-001",
				ExpiryDate: expiry(2025, time.December, 31),
				Quantity:   4,
				Unit:       domain.UnitLiter,
				LocationID: "LOC-002",
				QAStatus:   domain.QAApproved,
			},
			{
				ID:         "BAT-002",
				CatalogID:  "CAT-002",
				LotNumber:  "L2024-SA",
				ExpiryDate: expiry(2024, time.May, 1),
				Quantity:   1,
				Unit:       domain.UnitLiter,
				LocationID: "LOC-002",
				QAStatus:   domain.QAApproved,
			},
		},
		Locations: []Location{
			{ID: "LOC-001", Name: "Main Lab Room", Code: "R101", Type: domain.LocationRoom},
			{ID: "LOC-002", Name: "Flammables Cabinet", Code: "CAB-FLM", Type: domain.LocationCabinet},
			{ID: "LOC-003", Name: "Cold Storage -20C", Code: "FRZ-01", Type: domain.LocationFreezer},
		},
	}
}

// Init writes the seed dataset into each collection whose key is absent and
// returns the keys it wrote. Present keys are never touched, even when their
// payload is empty or unreadable.
func (s *Service) Init(ctx context.Context) ([]string, error) {
	var written []string
	err := s.run(ctx, opInit, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		writers := map[string]func(context.Context) error{
			s.keys.Catalog: func(ctx context.Context) error {
				return WriteCollection(ctx, s.records, s.keys.Catalog, s.seed.Catalog)
			},
			s.keys.Batches: func(ctx context.Context) error {
				return WriteCollection(ctx, s.records, s.keys.Batches, s.seed.Batches)
			},
			s.keys.Locations: func(ctx context.Context) error {
				return WriteCollection(ctx, s.records, s.keys.Locations, s.seed.Locations)
			},
		}
		for _, key := range s.keys.All() {
			present, err := s.records.Present(ctx, key)
			if err != nil {
				return err
			}
			if present {
				continue
			}
			if err := writers[key](ctx); err != nil {
				return err
			}
			written = append(written, key)
		}
		if len(written) > 0 {
			s.logger.Info("seeded collections", "keys", written)
		}
		return nil
	})
	return written, err
}
