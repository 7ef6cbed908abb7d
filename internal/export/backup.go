// Package export writes inventory backups and spreadsheet reports to a blob store.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"labcontrol/internal/core"
	"labcontrol/pkg/domain"
)

// Backup is the full-dataset JSON document.
type Backup struct {
	Catalog   []domain.CatalogItem `json:"catalog"`
	Batches   []domain.Batch       `json:"batches"`
	Locations []domain.Location    `json:"locations"`
	Timestamp string               `json:"timestamp"`
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// NewBackup captures snap as of now. Timestamps are UTC ISO-8601 with milliseconds.
func NewBackup(snap core.Snapshot, now time.Time) Backup {
	b := Backup{
		Catalog:   snap.Catalog,
		Batches:   snap.Batches,
		Locations: snap.Locations,
		Timestamp: now.UTC().Format(isoMillis),
	}
	if b.Catalog == nil {
		b.Catalog = []domain.CatalogItem{}
	}
	if b.Batches == nil {
		b.Batches = []domain.Batch{}
	}
	if b.Locations == nil {
		b.Locations = []domain.Location{}
	}
	return b
}

// BackupName is the file name for a backup taken on the UTC date of t.
func BackupName(t time.Time) string {
	return fmt.Sprintf("labcontrol_backup_%s.json", t.UTC().Format(time.DateOnly))
}

// EncodeBackup writes b as indented JSON.
func EncodeBackup(w io.Writer, b Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// DecodeBackup parses a backup document.
func DecodeBackup(r io.Reader) (Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return Backup{}, fmt.Errorf("decode backup: %w", err)
	}
	return b, nil
}
