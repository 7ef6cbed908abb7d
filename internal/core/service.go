package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// DefaultExpiryWindow is the lookahead used for expiring-soon checks.
const DefaultExpiryWindow = 30 * 24 * time.Hour

const (
	opInit              = "init"
	opAddCatalogItem    = "add_catalog_item"
	opUpdateCatalogItem = "update_catalog_item"
	opDeleteCatalogItem = "delete_catalog_item"
	opAddBatch          = "add_batch"
	opUpdateBatch       = "update_batch"
	opDeleteBatch       = "delete_batch"
	opConsumeBatch      = "consume_batch"
	opReadCatalog       = "read_catalog"
	opReadBatches       = "read_batches"
	opReadLocations     = "read_locations"
	opSummarize         = "summarize"
	opDashboard         = "dashboard"
	opSnapshot          = "snapshot"
)

// Service owns the inventory collections. All read-modify-write cycles of one
// instance are serialized; separate instances over a shared backend are not
// coordinated.
type Service struct {
	mu      sync.Mutex
	records *RecordStore
	keys    Keys
	seed    SeedData

	logger       cmtlog.Logger
	metrics      MetricsRecorder
	tracer       Tracer
	audit        AuditRecorder
	clock        Clock
	expiryWindow time.Duration
	strictIDs    bool
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger cmtlog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the history sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithExpiryWindow overrides the expiring-soon lookahead. Non-positive values are ignored.
func WithExpiryWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.expiryWindow = window
		}
	}
}

// WithStrictIDs makes add operations reject ids already present.
func WithStrictIDs(strict bool) Option {
	return func(s *Service) { s.strictIDs = strict }
}

// WithKeyPrefix namespaces the collection keys.
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) { s.keys = NewKeys(prefix) }
}

// WithSeedData replaces the default dataset written by Init.
func WithSeedData(seed SeedData) Option {
	return func(s *Service) { s.seed = seed }
}

// NewService constructs a service over the key-value backend.
func NewService(kv KeyValueStore, opts ...Option) *Service {
	s := &Service{
		records:      NewRecordStore(kv),
		keys:         NewKeys(DefaultKeyPrefix),
		seed:         DefaultSeed(),
		logger:       cmtlog.NewNopLogger(),
		metrics:      noopMetricsRecorder{},
		tracer:       noopTracer{},
		audit:        noopAuditRecorder{},
		clock:        ClockFunc(time.Now),
		expiryWindow: DefaultExpiryWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "core")
	return s
}

// Keys returns the collection keys in use.
func (s *Service) Keys() Keys { return s.keys }

// Now returns the service clock time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// ExpiryWindow returns the configured expiring-soon window.
func (s *Service) ExpiryWindow() time.Duration { return s.expiryWindow }

// Close releases the backend.
func (s *Service) Close() error { return s.records.Backend().Close() }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "err", err)
	}
	return err
}

// mutate runs a write operation under the service lock and records history
// when it changed state or failed.
func (s *Service) mutate(ctx context.Context, op, entityID string, fn func(context.Context) (string, error)) error {
	start := time.Now()
	var description string
	err := s.run(ctx, op, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var err error
		description, err = fn(ctx)
		return err
	})
	if err == nil && description == "" {
		return nil
	}
	s.recordAudit(ctx, op, entityID, description, err, time.Since(start))
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, entityID, description string, err error, duration time.Duration) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation:   op,
		Action:      meta.action,
		Entity:      meta.entity,
		EntityID:    entityID,
		Description: description,
		Status:      AuditStatusSuccess,
		Duration:    duration,
		Timestamp:   s.clock.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) read(ctx context.Context, op string, fn func(context.Context) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(ctx)
	})
}

func validateCatalogItem(item CatalogItem) error {
	if item.ID == "" {
		return invalid("id", "required")
	}
	if blank(item.Name) {
		return invalid("name", "required")
	}
	if !item.Category.Valid() {
		return invalid("category", "unknown category %q", item.Category)
	}
	if item.MinStockLevel < 0 {
		return invalid("minStockLevel", "must be >= 0, got %d", item.MinStockLevel)
	}
	return nil
}

func validateBatch(batch Batch) error {
	if batch.ID == "" {
		return invalid("id", "required")
	}
	switch {
	case blank(batch.CatalogID):
		return invalid("catalogId", "required")
	case blank(batch.LotNumber):
		return invalid("lotNumber", "required")
	case blank(batch.LocationID):
		return invalid("locationId", "required")
	}
	if !batch.Unit.Valid() {
		return invalid("unit", "unknown unit %q", batch.Unit)
	}
	if !batch.QAStatus.Valid() {
		return invalid("qaStatus", "unknown QA status %q", batch.QAStatus)
	}
	if math.IsNaN(batch.Quantity) || math.IsInf(batch.Quantity, 0) {
		return invalid("quantity", "must be a finite number")
	}
	if batch.Quantity < 0 {
		return invalid("quantity", "must be >= 0, got %v", batch.Quantity)
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Catalog returns every catalog item in stored order.
func (s *Service) Catalog(ctx context.Context) ([]CatalogItem, error) {
	var out []CatalogItem
	err := s.read(ctx, opReadCatalog, func(ctx context.Context) error {
		var err error
		out, err = ReadCollection[CatalogItem](ctx, s.records, s.keys.Catalog)
		return err
	})
	return out, err
}

// Batches returns every batch in stored order.
func (s *Service) Batches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := s.read(ctx, opReadBatches, func(ctx context.Context) error {
		var err error
		out, err = ReadCollection[Batch](ctx, s.records, s.keys.Batches)
		return err
	})
	return out, err
}

// Locations returns every location in stored order.
func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	var out []Location
	err := s.read(ctx, opReadLocations, func(ctx context.Context) error {
		var err error
		out, err = ReadCollection[Location](ctx, s.records, s.keys.Locations)
		return err
	})
	return out, err
}

// CatalogItem returns the first catalog item with id.
func (s *Service) CatalogItem(ctx context.Context, id string) (CatalogItem, error) {
	items, err := s.Catalog(ctx)
	if err != nil {
		return CatalogItem{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return CatalogItem{}, ErrNotFound{Entity: EntityCatalogItem, ID: id}
}

// Batch returns the first batch with id.
func (s *Service) Batch(ctx context.Context, id string) (Batch, error) {
	batches, err := s.Batches(ctx)
	if err != nil {
		return Batch{}, err
	}
	for _, batch := range batches {
		if batch.ID == id {
			return batch, nil
		}
	}
	return Batch{}, ErrNotFound{Entity: EntityBatch, ID: id}
}

// Location returns the first location with id.
func (s *Service) Location(ctx context.Context, id string) (Location, error) {
	locations, err := s.Locations(ctx)
	if err != nil {
		return Location{}, err
	}
	for _, loc := range locations {
		if loc.ID == id {
			return loc, nil
		}
	}
	return Location{}, ErrNotFound{Entity: EntityLocation, ID: id}
}

// AddCatalogItem appends item to the catalog.
func (s *Service) AddCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error) {
	err := s.mutate(ctx, opAddCatalogItem, item.ID, func(ctx context.Context) (string, error) {
		if err := validateCatalogItem(item); err != nil {
			return "", err
		}
		items, err := ReadCollection[CatalogItem](ctx, s.records, s.keys.Catalog)
		if err != nil {
			return "", err
		}
		if s.strictIDs && indexOf(items, item.ID, catalogID) >= 0 {
			return "", fmt.Errorf("%w: catalog item %s", ErrDuplicateID, item.ID)
		}
		if err := WriteCollection(ctx, s.records, s.keys.Catalog, append(items, item)); err != nil {
			return "", err
		}
		s.logger.Info("catalog item added", "item", item.ID, "name", item.Name)
		return fmt.Sprintf("added catalog item %s", item.Name), nil
	})
	if err != nil {
		return CatalogItem{}, err
	}
	return item, nil
}

// UpdateCatalogItem replaces the first catalog item sharing item.ID, keeping
// its position. It reports false without writing when no such item exists.
func (s *Service) UpdateCatalogItem(ctx context.Context, item CatalogItem) (bool, error) {
	var applied bool
	err := s.mutate(ctx, opUpdateCatalogItem, item.ID, func(ctx context.Context) (string, error) {
		items, err := ReadCollection[CatalogItem](ctx, s.records, s.keys.Catalog)
		if err != nil {
			return "", err
		}
		idx := indexOf(items, item.ID, catalogID)
		if idx < 0 {
			s.logger.Debug("catalog update ignored", "item", item.ID)
			return "", nil
		}
		if err := validateCatalogItem(item); err != nil {
			return "", err
		}
		items[idx] = item
		if err := WriteCollection(ctx, s.records, s.keys.Catalog, items); err != nil {
			return "", err
		}
		applied = true
		s.logger.Info("catalog item updated", "item", item.ID)
		return fmt.Sprintf("updated catalog item %s", item.Name), nil
	})
	return applied, err
}

// DeleteCatalogItem removes every catalog item with id. Batches referencing
// the item are left in place. It reports false without writing when nothing matched.
func (s *Service) DeleteCatalogItem(ctx context.Context, id string) (bool, error) {
	var applied bool
	err := s.mutate(ctx, opDeleteCatalogItem, id, func(ctx context.Context) (string, error) {
		items, err := ReadCollection[CatalogItem](ctx, s.records, s.keys.Catalog)
		if err != nil {
			return "", err
		}
		kept, removed := without(items, id, catalogID)
		if removed == 0 {
			s.logger.Debug("catalog delete ignored", "item", id)
			return "", nil
		}
		if err := WriteCollection(ctx, s.records, s.keys.Catalog, kept); err != nil {
			return "", err
		}
		applied = true
		s.logger.Info("catalog item deleted", "item", id, "removed", removed)
		return fmt.Sprintf("deleted catalog item %s", id), nil
	})
	return applied, err
}

// AddBatch appends batch to the batch collection. The catalog and location
// references are not checked.
func (s *Service) AddBatch(ctx context.Context, batch Batch) (Batch, error) {
	err := s.mutate(ctx, opAddBatch, batch.ID, func(ctx context.Context) (string, error) {
		if err := validateBatch(batch); err != nil {
			return "", err
		}
		batches, err := ReadCollection[Batch](ctx, s.records, s.keys.Batches)
		if err != nil {
			return "", err
		}
		if s.strictIDs && indexOf(batches, batch.ID, batchID) >= 0 {
			return "", fmt.Errorf("%w: batch %s", ErrDuplicateID, batch.ID)
		}
		if err := WriteCollection(ctx, s.records, s.keys.Batches, append(batches, batch)); err != nil {
			return "", err
		}
		s.logger.Info("batch added", "batch", batch.ID, "catalog", batch.CatalogID, "quantity", batch.Quantity)
		return fmt.Sprintf("added batch %s (%v %s)", batch.LotNumber, batch.Quantity, batch.Unit), nil
	})
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// UpdateBatch replaces the first batch sharing batch.ID in place. It reports
// false without writing when no such batch exists.
func (s *Service) UpdateBatch(ctx context.Context, batch Batch) (bool, error) {
	var applied bool
	err := s.mutate(ctx, opUpdateBatch, batch.ID, func(ctx context.Context) (string, error) {
		ok, err := s.replaceBatch(ctx, batch)
		if err != nil || !ok {
			return "", err
		}
		applied = true
		s.logger.Info("batch updated", "batch", batch.ID, "quantity", batch.Quantity)
		return fmt.Sprintf("updated batch %s", batch.LotNumber), nil
	})
	return applied, err
}

// DeleteBatch removes every batch with id. It reports false without writing
// when nothing matched.
func (s *Service) DeleteBatch(ctx context.Context, id string) (bool, error) {
	var applied bool
	err := s.mutate(ctx, opDeleteBatch, id, func(ctx context.Context) (string, error) {
		removed, err := s.removeBatch(ctx, id)
		if err != nil || removed == 0 {
			return "", err
		}
		applied = true
		s.logger.Info("batch deleted", "batch", id, "removed", removed)
		return fmt.Sprintf("deleted batch %s", id), nil
	})
	return applied, err
}

func (s *Service) replaceBatch(ctx context.Context, batch Batch) (bool, error) {
	batches, err := ReadCollection[Batch](ctx, s.records, s.keys.Batches)
	if err != nil {
		return false, err
	}
	idx := indexOf(batches, batch.ID, batchID)
	if idx < 0 {
		s.logger.Debug("batch update ignored", "batch", batch.ID)
		return false, nil
	}
	if err := validateBatch(batch); err != nil {
		return false, err
	}
	batches[idx] = batch
	if err := WriteCollection(ctx, s.records, s.keys.Batches, batches); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) removeBatch(ctx context.Context, id string) (int, error) {
	batches, err := ReadCollection[Batch](ctx, s.records, s.keys.Batches)
	if err != nil {
		return 0, err
	}
	kept, removed := without(batches, id, batchID)
	if removed == 0 {
		s.logger.Debug("batch delete ignored", "batch", id)
		return 0, nil
	}
	if err := WriteCollection(ctx, s.records, s.keys.Batches, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func catalogID(item CatalogItem) string { return item.ID }
func batchID(batch Batch) string        { return batch.ID }

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, item := range items {
		if key(item) == id {
			return i
		}
	}
	return -1
}

func without[T any](items []T, id string, key func(T) string) ([]T, int) {
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if key(item) != id {
			kept = append(kept, item)
		}
	}
	return kept, len(items) - len(kept)
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
