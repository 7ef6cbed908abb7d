package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func TestServiceObservabilityHooks(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(nil)
	audit := &captureAuditRecorder{}
	svc, _ := newSeededService(t, WithMetricsRecorder(metrics), WithTracer(tracer), WithAuditRecorder(audit))

	if _, err := svc.AddBatch(ctx, batchOf("B9", "CAT-001", 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Consume(ctx, ConsumeRequest{BatchID: "missing", Amount: amount(t, "1")}); err == nil {
		t.Fatalf("expected consume error")
	}
	if _, err := svc.UpdateBatch(ctx, batchOf("unknown", "x", 1)); err != nil {
		t.Fatalf("update: %v", err)
	}

	if !metrics.has(opInit, true) || !metrics.has(opAddBatch, true) || !metrics.has(opConsumeBatch, false) {
		t.Fatalf("missing metric observations: %+v", metrics.calls)
	}

	var sawError bool
	for _, span := range tracer.Entries() {
		if span.Operation == opConsumeBatch && span.Status == "error" && strings.Contains(span.Error, "not found") {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected error span for consume, got %+v", tracer.Entries())
	}

	if len(audit.entries) != 2 {
		t.Fatalf("expected add and failed consume audited (no-op update skipped), got %+v", audit.entries)
	}
	add := audit.entries[0]
	if add.Action != ActionCreate || add.Entity != EntityBatch || add.EntityID != "B9" || add.Status != AuditStatusSuccess {
		t.Fatalf("unexpected add audit %+v", add)
	}
	if !add.Timestamp.Equal(fixedNow) {
		t.Fatalf("audit timestamp should use service clock, got %v", add.Timestamp)
	}
	if audit.entries[1].Action != ActionConsume || audit.entries[1].Status != AuditStatusError {
		t.Fatalf("unexpected consume audit %+v", audit.entries[1])
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	svc, _ := newSeededService(t, WithMetricsRecorder(rec))

	if _, err := svc.Dashboard(ctx); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got := promtest.ToFloat64(rec.LowStock()); got != 3 {
		t.Fatalf("expected low stock gauge 3, got %v", got)
	}
	_, _ = svc.Consume(ctx, ConsumeRequest{BatchID: "missing", Amount: amount(t, "1")})
	if got := promtest.ToFloat64(rec.Operations().WithLabelValues(opConsumeBatch, "error")); got != 1 {
		t.Fatalf("expected one consume error, got %v", got)
	}
	if got := promtest.ToFloat64(rec.Operations().WithLabelValues(opInit, "success")); got != 1 {
		t.Fatalf("expected one init success, got %v", got)
	}
	if n := promtest.CollectAndCount(rec.Operations()); n == 0 {
		t.Fatalf("expected operation series")
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "op")
	span.End(errors.New("boom"))
	if !strings.Contains(buf.String(), `"operation":"op"`) || !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Fatalf("unexpected trace output %s", buf.String())
	}
	if len(tracer.Entries()) != 1 {
		t.Fatalf("expected retained entry")
	}
}

func TestHistoryLogNewestFirstAndBounded(t *testing.T) {
	var buf bytes.Buffer
	log := NewHistoryLog(&buf, 2)
	ctx := context.Background()
	log.Record(ctx, AuditEntry{Operation: "a", Entity: EntityBatch})
	log.Record(ctx, AuditEntry{Operation: "b", Entity: EntityCatalogItem})
	log.Record(ctx, AuditEntry{Operation: "c", Entity: EntityBatch})

	entries := log.Entries()
	if len(entries) != 2 || entries[0].Operation != "c" || entries[1].Operation != "b" {
		t.Fatalf("unexpected history %+v", entries)
	}
	if entries[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if got := log.Filter(HistoryFilter{Entity: EntityBatch}); len(got) != 1 || got[0].Operation != "c" {
		t.Fatalf("unexpected filtered history %+v", got)
	}
	if strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("expected three JSON lines, got %q", buf.String())
	}
}

func TestServiceLogsMutations(t *testing.T) {
	var buf bytes.Buffer
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(&buf))
	svc, _ := newSeededService(t, WithLogger(logger))
	if _, err := svc.Consume(context.Background(), ConsumeRequest{BatchID: "BAT-001", Amount: amount(t, "1")}); err != nil {
		t.Fatalf("consume: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "batch consumed") || !strings.Contains(out, "module=core") {
		t.Fatalf("expected consumption log line, got %q", out)
	}
}

func TestReadHistoryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewHistoryLog(&buf, 0)
	svc, _ := newSeededService(t, WithAuditRecorder(log))
	ctx := context.Background()
	if _, err := svc.Consume(ctx, ConsumeRequest{BatchID: "BAT-001", Amount: amount(t, "1")}); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := svc.DeleteBatch(ctx, "BAT-002"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, err := ReadHistory(&buf)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != ActionDelete || entries[1].Action != ActionConsume {
		t.Fatalf("unexpected history %+v", entries)
	}
	if !strings.Contains(entries[1].Description, "L2023-001") {
		t.Fatalf("expected lot in description, got %q", entries[1].Description)
	}
	if _, err := ReadHistory(strings.NewReader("{bad")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHistoryFilterByActionAndSearch(t *testing.T) {
	ctx := context.Background()
	log := NewHistoryLog(nil, 0)
	svc, _ := newSeededService(t, WithAuditRecorder(log))
	if _, err := svc.Consume(ctx, ConsumeRequest{BatchID: "BAT-001", Amount: amount(t, "1")}); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := svc.AddCatalogItem(ctx, chemical("CAT-9", "Ethanol", 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.DeleteBatch(ctx, "BAT-002"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cases := []struct {
		name   string
		filter HistoryFilter
		want   []string
	}{
		{"all", HistoryFilter{}, []string{opDeleteBatch, opAddCatalogItem, opConsumeBatch}},
		{"action", HistoryFilter{Action: ActionConsume}, []string{opConsumeBatch}},
		{"entity and action", HistoryFilter{Entity: EntityBatch, Action: ActionCreate}, nil},
		{"search description", HistoryFilter{Search: "ethanol"}, []string{opAddCatalogItem}},
		{"search entity id", HistoryFilter{Search: "bat-002"}, []string{opDeleteBatch}},
		{"search with action", HistoryFilter{Action: ActionDelete, Search: "L2023"}, nil},
	}
	for _, tc := range cases {
		got := log.Filter(tc.filter)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %d entries %+v", tc.name, len(got), got)
		}
		for i, op := range tc.want {
			if got[i].Operation != op {
				t.Fatalf("%s: entry %d is %s, want %s", tc.name, i, got[i].Operation, op)
			}
		}
	}
}

func TestParseAuditAction(t *testing.T) {
	for in, want := range map[string]AuditAction{"": "", "Consume": ActionConsume, " delete ": ActionDelete} {
		got, err := ParseAuditAction(in)
		if err != nil || got != want {
			t.Fatalf("ParseAuditAction(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseAuditAction("restore"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadHistoryContinuesFile(t *testing.T) {
	var file bytes.Buffer
	first := NewHistoryLog(&file, 0)
	ctx := context.Background()
	first.Record(ctx, AuditEntry{Operation: "a", Entity: EntityBatch, Action: ActionCreate})
	first.Record(ctx, AuditEntry{Operation: "b", Entity: EntityBatch, Action: ActionUpdate})

	var appended bytes.Buffer
	loaded, err := LoadHistory(bytes.NewReader(file.Bytes()), &appended, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.Record(ctx, AuditEntry{Operation: "c", Entity: EntityBatch, Action: ActionDelete})
	entries := loaded.Entries()
	if len(entries) != 3 || entries[0].Operation != "c" || entries[2].Operation != "a" {
		t.Fatalf("unexpected loaded history %+v", entries)
	}
	if strings.Count(appended.String(), "\n") != 1 {
		t.Fatalf("only new entries should be written, got %q", appended.String())
	}

	bounded, err := LoadHistory(bytes.NewReader(file.Bytes()), nil, 1)
	if err != nil || len(bounded.Entries()) != 1 || bounded.Entries()[0].Operation != "b" {
		t.Fatalf("limit should keep newest entry, got %+v %v", bounded.Entries(), err)
	}
	if _, err := LoadHistory(strings.NewReader("{bad"), nil, 0); err == nil {
		t.Fatalf("expected decode error")
	}
}
