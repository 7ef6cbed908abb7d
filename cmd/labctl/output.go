package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"labcontrol/internal/blob"
	"labcontrol/internal/core"
)

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printResult(v any, format string, args ...any) error {
	if a.json {
		return a.writeJSON(v)
	}
	_, err := fmt.Fprintf(a.stdout, format+"\n", args...)
	return err
}

func (a *app) printNoop(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if a.json {
		return a.writeJSON(map[string]any{"changed": false, "message": msg})
	}
	_, err := fmt.Fprintln(a.stdout, msg)
	return err
}

func (a *app) table(header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func expiryText(b core.Batch) string {
	t, ok := b.Expiry()
	if !ok {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func quantity(v float64) string {
	return fmt.Sprintf("%g", v)
}

func (a *app) printCatalog(items []core.CatalogItem) error {
	if a.json {
		return a.writeJSON(items)
	}
	tw := a.table("ID", "NAME", "CATEGORY", "CAS", "MIN STOCK", "HAZARDS")
	for _, it := range items {
		row(tw, it.ID, it.Name, it.Category, dash(it.CASNumber), it.MinStockLevel, dash(strings.Join(it.GHSHazards, ",")))
	}
	return tw.Flush()
}

func (a *app) printBatches(batches []core.Batch) error {
	if a.json {
		return a.writeJSON(batches)
	}
	tw := a.table("ID", "CATALOG", "LOT", "QUANTITY", "UNIT", "EXPIRY", "LOCATION", "QA")
	for _, b := range batches {
		row(tw, b.ID, b.CatalogID, b.LotNumber, quantity(b.Quantity), b.Unit, expiryText(b), b.LocationID, b.QAStatus)
	}
	return tw.Flush()
}

func (a *app) printBatchRows(rows []core.BatchRow) error {
	if a.json {
		return a.writeJSON(rows)
	}
	tw := a.table("ID", "ITEM", "LOT", "QUANTITY", "UNIT", "EXPIRY", "LOCATION", "QA", "EXPIRED")
	for _, r := range rows {
		expired := ""
		if r.Expired {
			expired = "yes"
		}
		row(tw, r.ID, r.ItemName, r.LotNumber, quantity(r.Quantity), r.Unit, expiryText(r.Batch), r.LocationName, r.QAStatus, expired)
	}
	return tw.Flush()
}

func (a *app) printSummaries(summaries []core.InventorySummary) error {
	if a.json {
		return a.writeJSON(summaries)
	}
	tw := a.table("ID", "NAME", "CATEGORY", "TOTAL", "MIN STOCK", "BATCHES", "LOW")
	for _, s := range summaries {
		low := ""
		if s.LowStock() {
			low = "yes"
		}
		row(tw, s.ID, s.Name, s.Category, quantity(s.TotalQuantity), s.MinStockLevel, len(s.Batches), low)
	}
	return tw.Flush()
}

func (a *app) printLocations(groups []core.LocationGroup) error {
	if a.json {
		return a.writeJSON(groups)
	}
	for i, g := range groups {
		if i > 0 {
			_, _ = fmt.Fprintln(a.stdout)
		}
		_, _ = fmt.Fprintf(a.stdout, "%s [%s] %s (%d batches)\n", g.Location.Name, g.Location.Code, g.Location.Type, len(g.Batches))
		for _, b := range g.Batches {
			_, _ = fmt.Fprintf(a.stdout, "  %s  lot %s  %s %s  expires %s\n", b.ID, b.LotNumber, quantity(b.Quantity), b.Unit, expiryText(b))
		}
	}
	return nil
}

func (a *app) printDangling(dangling []core.DanglingBatch) error {
	if a.json {
		return a.writeJSON(dangling)
	}
	if len(dangling) == 0 {
		_, err := fmt.Fprintln(a.stdout, "no dangling batches")
		return err
	}
	tw := a.table("ID", "CATALOG", "LOCATION", "MISSING")
	for _, d := range dangling {
		var missing []string
		if d.MissingCatalog {
			missing = append(missing, "catalog")
		}
		if d.MissingLocation {
			missing = append(missing, "location")
		}
		row(tw, d.Batch.ID, d.Batch.CatalogID, d.Batch.LocationID, strings.Join(missing, ","))
	}
	return tw.Flush()
}

func (a *app) printDashboard(stats core.DashboardStats) error {
	if a.json {
		return a.writeJSON(stats)
	}
	tw := a.table("METRIC", "VALUE")
	row(tw, "total items", stats.TotalItems)
	row(tw, "chemicals", stats.TotalChemicals)
	row(tw, "expiring soon", stats.ExpiringSoon)
	row(tw, "expired", stats.Expired)
	row(tw, "low stock", stats.LowStock)
	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		row(tw, "category "+c, stats.ByCategory[core.Category(c)])
	}
	return tw.Flush()
}

func (a *app) printHistory(entries []core.AuditEntry) error {
	if a.json {
		return a.writeJSON(entries)
	}
	tw := a.table("TIME", "OPERATION", "ENTITY", "ID", "STATUS", "DESCRIPTION")
	for _, e := range entries {
		desc := e.Description
		if e.Error != "" {
			desc = e.Error
		}
		row(tw, e.Timestamp.UTC().Format(time.RFC3339), e.Operation, e.Entity, dash(e.EntityID), e.Status, dash(desc))
	}
	return tw.Flush()
}

func (a *app) printBlobs(infos []blob.Info) error {
	if a.json {
		return a.writeJSON(infos)
	}
	tw := a.table("KEY", "SIZE", "MODIFIED")
	for _, info := range infos {
		row(tw, info.Key, info.Size, info.LastModified.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
