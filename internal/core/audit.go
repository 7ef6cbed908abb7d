package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditAction classifies the kind of change recorded in the history log.
type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionDelete  AuditAction = "delete"
	ActionConsume AuditAction = "consume"
)

// AuditStatus captures whether the audited operation succeeded.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry is one history record for a mutating operation.
type AuditEntry struct {
	ID          string        `json:"id"`
	Operation   string        `json:"operation"`
	Action      AuditAction   `json:"action"`
	Entity      EntityType    `json:"entity"`
	EntityID    string        `json:"entityId,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      AuditStatus   `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}

// AuditRecorder receives history entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type auditMeta struct {
	entity EntityType
	action AuditAction
}

var auditOperations = map[string]auditMeta{
	opAddCatalogItem:    {EntityCatalogItem, ActionCreate},
	opUpdateCatalogItem: {EntityCatalogItem, ActionUpdate},
	opDeleteCatalogItem: {EntityCatalogItem, ActionDelete},
	opAddBatch:          {EntityBatch, ActionCreate},
	opUpdateBatch:       {EntityBatch, ActionUpdate},
	opDeleteBatch:       {EntityBatch, ActionDelete},
	opConsumeBatch:      {EntityBatch, ActionConsume},
}

// HistoryLog keeps the most recent audit entries in memory and optionally
// mirrors each one as a JSON line.
type HistoryLog struct {
	mu      sync.Mutex
	limit   int
	entries []AuditEntry
	enc     *json.Encoder
}

// NewHistoryLog retains up to limit entries (unbounded when limit <= 0).
func NewHistoryLog(w io.Writer, limit int) *HistoryLog {
	h := &HistoryLog{limit: limit}
	if w != nil {
		h.enc = json.NewEncoder(w)
	}
	return h
}

// Record implements AuditRecorder.
func (h *HistoryLog) Record(_ context.Context, entry AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append([]AuditEntry(nil), h.entries[len(h.entries)-h.limit:]...)
	}
	if h.enc != nil {
		_ = h.enc.Encode(entry)
	}
}

// Entries returns retained entries, newest first.
func (h *HistoryLog) Entries() []AuditEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]AuditEntry, len(h.entries))
	for i, entry := range h.entries {
		out[len(h.entries)-1-i] = entry
	}
	return out
}

// LoadHistory seeds a HistoryLog with the JSON-lines entries in r and mirrors
// new entries to w. r and w may be the same append-mode file.
func LoadHistory(r io.Reader, w io.Writer, limit int) (*HistoryLog, error) {
	existing, err := ReadHistory(r)
	if err != nil {
		return nil, err
	}
	h := NewHistoryLog(w, limit)
	for i := len(existing) - 1; i >= 0; i-- {
		h.entries = append(h.entries, existing[i])
	}
	if limit > 0 && len(h.entries) > limit {
		h.entries = h.entries[len(h.entries)-limit:]
	}
	return h, nil
}

// HistoryFilter narrows history entries. Zero fields match everything; Search
// is a case-insensitive substring of the description or entity id.
type HistoryFilter struct {
	Entity EntityType
	Action AuditAction
	Search string
}

// Match reports whether entry passes every set field of f.
func (f HistoryFilter) Match(entry AuditEntry) bool {
	if f.Entity != "" && entry.Entity != f.Entity {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(entry.Description), needle) ||
		strings.Contains(strings.ToLower(entry.EntityID), needle)
}

// Filter returns the retained entries matching f, newest first.
func (h *HistoryLog) Filter(f HistoryFilter) []AuditEntry {
	out := []AuditEntry{}
	for _, entry := range h.Entries() {
		if f.Match(entry) {
			out = append(out, entry)
		}
	}
	return out
}

// ParseAuditAction maps user text to an action. Empty text means any action.
func ParseAuditAction(s string) (AuditAction, error) {
	action := AuditAction(strings.ToLower(strings.TrimSpace(s)))
	switch action {
	case "", ActionCreate, ActionUpdate, ActionDelete, ActionConsume:
		return action, nil
	default:
		return "", invalid("action", "unknown action %q", s)
	}
}

// ReadHistory decodes JSON-lines audit entries written by a HistoryLog and
// returns them newest first.
func ReadHistory(r io.Reader) ([]AuditEntry, error) {
	dec := json.NewDecoder(r)
	var entries []AuditEntry
	for {
		var entry AuditEntry
		err := dec.Decode(&entry)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, entry)
	}
	out := make([]AuditEntry, len(entries))
	for i, entry := range entries {
		out[len(entries)-1-i] = entry
	}
	return out, nil
}
