package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"labcontrol/internal/blob/core"
)

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem || s.Root() != root {
		t.Fatalf("unexpected store %+v", s)
	}

	info, err := s.Put(ctx, "backups/labcontrol_backup_2024-03-01.json", bytes.NewBufferString(`{"a":1}`), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "backups", "labcontrol_backup_2024-03-01.json")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if _, err := s.Put(ctx, "backups/labcontrol_backup_2024-03-01.json", bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "backups/labcontrol_backup_2024-03-01.json", bytes.NewBufferString(`{}`), core.PutOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, rc, err := s.Get(ctx, "backups/labcontrol_backup_2024-03-01.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || got.ContentType != "" || got.Size != 2 {
		t.Fatalf("unexpected get result %+v %q", got, body)
	}

	_, _ = s.Put(ctx, "reports/r.xlsx", bytes.NewBufferString("zip"), core.PutOptions{})
	list, err := s.List(ctx, "backups/")
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "backups/labcontrol_backup_2024-03-01.json" {
		t.Fatalf("unexpected full list %+v", all)
	}

	if ok, err := s.Delete(ctx, "reports/r.xlsx"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "reports/r.xlsx"); ok {
		t.Fatalf("expected missing delete to report false")
	}
	if _, err := s.Head(ctx, "reports/r.xlsx"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "reports/r.xlsx"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestFilesystemStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape", "/abs", "x.meta"} {
		if _, err := s.Put(context.Background(), key, bytes.NewBufferString("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}
