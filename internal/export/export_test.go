package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"labcontrol/internal/blob"
	"labcontrol/internal/core"
)

var exportNow = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func seededService(t *testing.T) *core.Service {
	t.Helper()
	kv, err := core.OpenKeyValueStore(core.StorageOptions{Driver: core.StorageMemory})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := core.NewService(kv, core.WithClock(core.ClockFunc(func() time.Time { return exportNow })))
	if _, err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return svc
}

func TestWriteBackup(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	exp := NewExporter(seededService(t), store, nil)

	info, err := exp.WriteBackup(ctx, false)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if info.Key != "backups/labcontrol_backup_2024-03-01.json" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}

	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	backup, err := DecodeBackup(rc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(backup.Catalog) != 3 || len(backup.Batches) != 2 || len(backup.Locations) != 3 {
		t.Fatalf("unexpected backup contents %+v", backup)
	}
	if backup.Timestamp != "2024-03-01T09:30:00.000Z" {
		t.Fatalf("unexpected timestamp %s", backup.Timestamp)
	}

	if _, err := exp.WriteBackup(ctx, false); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists on second backup, got %v", err)
	}
	if _, err := exp.WriteBackup(ctx, true); err != nil {
		t.Fatalf("overwrite backup: %v", err)
	}
}

func TestNewBackupEmptyCollections(t *testing.T) {
	b := NewBackup(core.Snapshot{}, exportNow)
	if b.Catalog == nil || b.Batches == nil || b.Locations == nil {
		t.Fatalf("expected empty arrays, got %+v", b)
	}
}

func TestWriteReport(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMockS3ForTests("lab")
	exp := NewExporter(seededService(t), store, nil)

	info, err := exp.WriteReport(ctx, false)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if info.Key != "reports/labcontrol_inventory_2024-03-01.xlsx" {
		t.Fatalf("unexpected key %s", info.Key)
	}

	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	f, err := excelize.OpenReader(rc)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != SheetInventory || sheets[1] != SheetBatches || sheets[2] != SheetLowStock {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	inv, err := f.GetRows(SheetInventory)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(inv) != 4 || inv[1][1] != "Acetone" || inv[1][4] != "4" || inv[1][6] != "yes" {
		t.Fatalf("unexpected inventory rows %v", inv)
	}
	batches, _ := f.GetRows(SheetBatches)
	if len(batches) != 3 || batches[2][1] != "Sulfuric Acid" || batches[2][3] != "2024-05-01" || batches[2][6] != "Flammables Cabinet" {
		t.Fatalf("unexpected batch rows %v", batches)
	}
	low, _ := f.GetRows(SheetLowStock)
	if len(low) != 4 || low[3][1] != "Beaker 500mL" || low[3][4] != "10" {
		t.Fatalf("unexpected low stock rows %v", low)
	}

	list, err := exp.List(ctx, ReportPrefix)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one stored report, got %+v %v", list, err)
	}
}

func TestNames(t *testing.T) {
	late := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.FixedZone("UTC-5", -5*3600))
	if got := BackupName(late); got != "labcontrol_backup_2025-01-01.json" {
		t.Fatalf("backup name should use UTC date, got %s", got)
	}
	if got := ReportName(exportNow); got != "labcontrol_inventory_2024-03-01.xlsx" {
		t.Fatalf("unexpected report name %s", got)
	}
}
