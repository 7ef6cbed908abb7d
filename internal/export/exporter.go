package export

import (
	"bytes"
	"context"
	"path"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"labcontrol/internal/blob"
	"labcontrol/internal/core"
)

// Source supplies the data and clock for exports.
type Source interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
	Now() time.Time
}

// Key prefixes inside the blob store.
const (
	BackupPrefix = "backups"
	ReportPrefix = "reports"
)

// Exporter writes backups and reports from a Source into a blob store.
type Exporter struct {
	source Source
	store  blob.Store
	logger cmtlog.Logger
}

// NewExporter wires an exporter. A nil logger discards output.
func NewExporter(source Source, store blob.Store, logger cmtlog.Logger) *Exporter {
	if logger == nil {
		logger = cmtlog.NewNopLogger()
	}
	return &Exporter{source: source, store: store, logger: logger.With("module", "export")}
}

// WriteBackup stores today's JSON backup under backups/. With overwrite unset
// a second backup on the same day fails with blob.ErrExists.
func (e *Exporter) WriteBackup(ctx context.Context, overwrite bool) (blob.Info, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	now := e.source.Now()
	var buf bytes.Buffer
	if err := EncodeBackup(&buf, NewBackup(snap, now)); err != nil {
		return blob.Info{}, err
	}
	key := path.Join(BackupPrefix, BackupName(now))
	info, err := e.store.Put(ctx, key, &buf, blob.PutOptions{ContentType: "application/json", Overwrite: overwrite})
	if err != nil {
		return blob.Info{}, err
	}
	e.logger.Info("backup written", "key", info.Key, "bytes", info.Size, "driver", string(e.store.Driver()))
	return info, nil
}

// WriteReport stores today's XLSX inventory report under reports/.
func (e *Exporter) WriteReport(ctx context.Context, overwrite bool) (blob.Info, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	now := e.source.Now()
	f, err := BuildReport(snap, now)
	if err != nil {
		return blob.Info{}, err
	}
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return blob.Info{}, err
	}
	key := path.Join(ReportPrefix, ReportName(now))
	info, err := e.store.Put(ctx, key, buf, blob.PutOptions{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Overwrite:   overwrite,
	})
	if err != nil {
		return blob.Info{}, err
	}
	e.logger.Info("report written", "key", info.Key, "bytes", info.Size, "driver", string(e.store.Driver()))
	return info, nil
}

// List returns stored exports under prefix.
func (e *Exporter) List(ctx context.Context, prefix string) ([]blob.Info, error) {
	return e.store.List(ctx, prefix)
}
