package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"labcontrol/internal/core"
	"labcontrol/internal/export"
	"labcontrol/pkg/domain"
)

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return a.cmdInit(ctx)
	case "history":
		return a.cmdHistory(rest)
	case "export":
		return a.cmdExport(ctx, rest)
	}

	if err := a.seedIfEnabled(ctx); err != nil {
		return err
	}
	switch cmd {
	case "catalog":
		return a.cmdCatalog(ctx, rest)
	case "batch":
		return a.cmdBatch(ctx, rest)
	case "locations":
		groups, err := a.svc.BatchesByLocation(ctx)
		if err != nil {
			return err
		}
		return a.printLocations(groups)
	case "summary":
		search, err := searchFlag("summary", "filter by name or CAS number", rest, a.stderr)
		if err != nil {
			return err
		}
		summaries, err := a.svc.InventorySummary(ctx)
		if err != nil {
			return err
		}
		return a.printSummaries(core.FilterCatalog(summaries, search))
	case "low-stock":
		summaries, err := a.svc.LowStock(ctx)
		if err != nil {
			return err
		}
		return a.printSummaries(summaries)
	case "expiring":
		batches, err := a.svc.ExpiringSoon(ctx)
		if err != nil {
			return err
		}
		return a.printBatches(batches)
	case "expired":
		batches, err := a.svc.Expired(ctx)
		if err != nil {
			return err
		}
		return a.printBatches(batches)
	case "dangling":
		dangling, err := a.svc.DanglingBatches(ctx)
		if err != nil {
			return err
		}
		return a.printDangling(dangling)
	case "dashboard":
		stats, err := a.svc.Dashboard(ctx)
		if err != nil {
			return err
		}
		return a.printDashboard(stats)
	default:
		return usageErrorf("unknown command %q", cmd)
	}
}

func (a *app) cmdInit(ctx context.Context) error {
	written, err := a.svc.Init(ctx)
	if err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(map[string][]string{"seeded": written})
	}
	if len(written) == 0 {
		_, err = fmt.Fprintln(a.stdout, "all collections already present")
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "seeded %s\n", strings.Join(written, ", "))
	return err
}

func (a *app) cmdHistory(args []string) error {
	fs := newFlagSet("history", a.stderr)
	entity := fs.String("entity", "", "only show entries for this entity (catalog_item, batch)")
	action := fs.String("action", "", "only show this action (create, update, delete, consume)")
	search := fs.String("search", "", "case-insensitive text in the description or record id")
	limit := fs.Int("limit", 0, "show at most this many entries")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("history: %v", err)
	}
	filter := core.HistoryFilter{Entity: core.EntityType(strings.TrimSpace(*entity)), Search: *search}
	var err error
	if filter.Action, err = core.ParseAuditAction(*action); err != nil {
		return usageErrorf("history: %v", err)
	}
	if a.history == nil {
		return errors.New("history is disabled: set history.file or LABCONTROL_HISTORY_FILE")
	}
	entries := a.history.Filter(filter)
	if *limit > 0 && len(entries) > *limit {
		entries = entries[:*limit]
	}
	return a.printHistory(entries)
}

func (a *app) cmdCatalog(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErrorf("catalog: missing subcommand (list, add, update, delete)")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		search, err := searchFlag("catalog list", "filter by name or CAS number", rest, a.stderr)
		if err != nil {
			return err
		}
		items, err := a.svc.Catalog(ctx)
		if err != nil {
			return err
		}
		return a.printCatalog(core.FilterCatalogItems(items, search))
	case "add":
		fs := newFlagSet("catalog add", a.stderr)
		item := core.CatalogItem{Category: core.CategoryChemical}
		bindCatalogFlags(fs, &item)
		if err := fs.Parse(rest); err != nil {
			return usageErrorf("catalog add: %v", err)
		}
		if item.ID == "" {
			item.ID = newID("CAT")
		}
		added, err := a.svc.AddCatalogItem(ctx, item)
		if err != nil {
			return err
		}
		return a.printResult(added, "added catalog item %s (%s)", added.ID, added.Name)
	case "update":
		id, rest := leadingID(rest)
		fs := newFlagSet("catalog update", a.stderr)
		var patch core.CatalogItem
		bindCatalogFlags(fs, &patch)
		if err := fs.Parse(rest); err != nil {
			return usageErrorf("catalog update: %v", err)
		}
		if id == "" {
			id = patch.ID
		}
		if id == "" {
			return usageErrorf("catalog update: -id is required")
		}
		current, err := a.svc.CatalogItem(ctx, id)
		if core.IsNotFound(err) {
			return a.printNoop("catalog item %s not found; nothing changed", id)
		}
		if err != nil {
			return err
		}
		patch.ID = id
		item := mergeCatalog(current, patch, setFlags(fs))
		if _, err := a.svc.UpdateCatalogItem(ctx, item); err != nil {
			return err
		}
		return a.printResult(item, "updated catalog item %s", item.ID)
	case "delete":
		id, err := requireID("catalog delete", rest, a.stderr)
		if err != nil {
			return err
		}
		removed, err := a.svc.DeleteCatalogItem(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			return a.printNoop("catalog item %s not found; nothing changed", id)
		}
		return a.printResult(map[string]string{"deleted": id}, "deleted catalog item %s", id)
	default:
		return usageErrorf("catalog: unknown subcommand %q", sub)
	}
}

func (a *app) cmdBatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErrorf("batch: missing subcommand (list, add, update, delete, consume)")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		fs := newFlagSet("batch list", a.stderr)
		search := fs.String("search", "", "filter by item name or lot number")
		if err := fs.Parse(rest); err != nil {
			return usageErrorf("batch list: %v", err)
		}
		rows, err := a.svc.BatchRows(ctx, *search)
		if err != nil {
			return err
		}
		return a.printBatchRows(rows)
	case "add":
		fs := newFlagSet("batch add", a.stderr)
		batch := core.Batch{QAStatus: core.QAApproved, Unit: core.UnitUnits}
		expiry := bindBatchFlags(fs, &batch)
		if err := fs.Parse(rest); err != nil {
			return usageErrorf("batch add: %v", err)
		}
		if err := applyExpiry(&batch, *expiry); err != nil {
			return err
		}
		if batch.ID == "" {
			batch.ID = newID("BAT")
		}
		added, err := a.svc.AddBatch(ctx, batch)
		if err != nil {
			return err
		}
		return a.printResult(added, "added batch %s (lot %s)", added.ID, added.LotNumber)
	case "update":
		id, rest := leadingID(rest)
		fs := newFlagSet("batch update", a.stderr)
		var patch core.Batch
		expiry := bindBatchFlags(fs, &patch)
		if err := fs.Parse(rest); err != nil {
			return usageErrorf("batch update: %v", err)
		}
		if id == "" {
			id = patch.ID
		}
		if id == "" {
			return usageErrorf("batch update: -id is required")
		}
		current, err := a.svc.Batch(ctx, id)
		if core.IsNotFound(err) {
			return a.printNoop("batch %s not found; nothing changed", id)
		}
		if err != nil {
			return err
		}
		set := setFlags(fs)
		if set["expiry"] {
			if err := applyExpiry(&patch, *expiry); err != nil {
				return err
			}
		}
		patch.ID = id
		batch := mergeBatch(current, patch, set)
		if _, err := a.svc.UpdateBatch(ctx, batch); err != nil {
			return err
		}
		return a.printResult(batch, "updated batch %s", batch.ID)
	case "delete":
		id, err := requireID("batch delete", rest, a.stderr)
		if err != nil {
			return err
		}
		removed, err := a.svc.DeleteBatch(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			return a.printNoop("batch %s not found; nothing changed", id)
		}
		return a.printResult(map[string]string{"deleted": id}, "deleted batch %s", id)
	case "consume":
		return a.cmdConsume(ctx, rest)
	default:
		return usageErrorf("batch: unknown subcommand %q", sub)
	}
}

func (a *app) cmdConsume(ctx context.Context, args []string) error {
	id, args := leadingID(args)
	fs := newFlagSet("batch consume", a.stderr)
	fs.StringVar(&id, "id", id, "batch id")
	amountText := fs.String("amount", "", "amount to consume, in the batch unit")
	onEmpty := fs.String("on-empty", "ask", "what to do when the batch reaches zero: ask, delete or retain")
	if err := fs.Parse(args); err != nil {
		return usageErrorf("batch consume: %v", err)
	}
	if id == "" {
		return usageErrorf("batch consume: -id is required")
	}
	amount, err := core.ParseAmount(*amountText)
	if err != nil {
		return err
	}
	action, err := core.ParseEmptyAction(*onEmpty)
	if err != nil {
		return usageErrorf("batch consume: %v", err)
	}
	result, err := a.svc.Consume(ctx, core.ConsumeRequest{BatchID: id, Amount: amount, OnEmpty: action})
	if err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(struct {
			Outcome   core.ConsumeOutcome `json:"outcome"`
			Batch     core.Batch          `json:"batch"`
			Remaining string              `json:"remaining"`
		}{result.Outcome, result.Batch, result.Remaining.String()})
	}
	switch result.Outcome {
	case core.Deleted:
		_, err = fmt.Fprintf(a.stdout, "consumed %s %s; batch %s emptied and deleted\n", amount, result.Batch.Unit, id)
	case core.RetainedEmpty:
		_, err = fmt.Fprintf(a.stdout, "consumed %s %s; batch %s emptied and kept\n", amount, result.Batch.Unit, id)
	default:
		_, err = fmt.Fprintf(a.stdout, "consumed %s %s; %s %s remaining in batch %s\n",
			amount, result.Batch.Unit, result.Remaining, result.Batch.Unit, id)
	}
	return err
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErrorf("export: missing subcommand (backup, report, list)")
	}
	sub, rest := args[0], args[1:]
	fs := newFlagSet("export "+sub, a.stderr)
	overwrite := fs.Bool("overwrite", false, "replace an export written earlier the same day")
	if err := fs.Parse(rest); err != nil {
		return usageErrorf("export %s: %v", sub, err)
	}
	if sub != "list" {
		if err := a.seedIfEnabled(ctx); err != nil {
			return err
		}
	}
	exporter, err := a.exporter(ctx)
	if err != nil {
		return err
	}
	switch sub {
	case "backup":
		info, err := exporter.WriteBackup(ctx, *overwrite)
		if err != nil {
			return err
		}
		return a.printResult(info, "wrote %s (%d bytes)", info.Key, info.Size)
	case "report":
		info, err := exporter.WriteReport(ctx, *overwrite)
		if err != nil {
			return err
		}
		return a.printResult(info, "wrote %s (%d bytes)", info.Key, info.Size)
	case "list":
		backups, err := exporter.List(ctx, export.BackupPrefix)
		if err != nil {
			return err
		}
		reports, err := exporter.List(ctx, export.ReportPrefix)
		if err != nil {
			return err
		}
		return a.printBlobs(append(backups, reports...))
	default:
		return usageErrorf("export: unknown subcommand %q", sub)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// newID returns prefix-XXXXXXXX with eight upper-case hex characters.
func newID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:8])
}

// leadingID accepts "update ID -flag ..." as well as "update -id ID ...".
func leadingID(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func requireID(name string, args []string, stderr io.Writer) (string, error) {
	id, rest := leadingID(args)
	fs := newFlagSet(name, stderr)
	fs.StringVar(&id, "id", id, "record id")
	if err := fs.Parse(rest); err != nil {
		return "", usageErrorf("%s: %v", name, err)
	}
	if id == "" {
		return "", usageErrorf("%s: -id is required", name)
	}
	return id, nil
}

func searchFlag(name, usage string, args []string, stderr io.Writer) (string, error) {
	fs := newFlagSet(name, stderr)
	search := fs.String("search", "", usage)
	if err := fs.Parse(args); err != nil {
		return "", usageErrorf("%s: %v", name, err)
	}
	return *search, nil
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// codesValue is a comma separated list of GHS codes, normalized on Set.
type codesValue struct{ items *[]string }

func (l codesValue) String() string {
	if l.items == nil {
		return ""
	}
	return strings.Join(*l.items, ",")
}

func (l codesValue) Set(s string) error {
	*l.items = domain.NormalizeCodes(strings.Split(s, ","))
	return nil
}

type categoryValue struct{ c *core.Category }

func (v categoryValue) String() string {
	if v.c == nil {
		return ""
	}
	return string(*v.c)
}

func (v categoryValue) Set(s string) error {
	*v.c = core.Category(strings.ToUpper(strings.TrimSpace(s)))
	return nil
}

func bindCatalogFlags(fs *flag.FlagSet, item *core.CatalogItem) {
	fs.StringVar(&item.ID, "id", item.ID, "catalog item id (generated when empty)")
	fs.StringVar(&item.Name, "name", item.Name, "display name")
	fs.Var(categoryValue{&item.Category}, "category", "CHEMICAL, EQUIPMENT, TOOL, ADMINISTRATIVE or GLASSWARE")
	fs.StringVar(&item.Subcategory, "subcategory", item.Subcategory, "free-form subcategory")
	fs.StringVar(&item.CASNumber, "cas", item.CASNumber, "CAS registry number")
	fs.StringVar(&item.MolecularFormula, "formula", item.MolecularFormula, "molecular formula")
	fs.Var(codesValue{&item.GHSPictograms}, "ghs-pictograms", "comma separated GHS pictogram codes")
	fs.Var(codesValue{&item.GHSHazards}, "ghs-hazards", "comma separated GHS hazard statements")
	fs.StringVar(&item.Description, "description", item.Description, "description")
	fs.StringVar(&item.Manufacturer, "manufacturer", item.Manufacturer, "manufacturer")
	fs.IntVar(&item.MinStockLevel, "min-stock", item.MinStockLevel, "minimum stock level")
}

func mergeCatalog(current, patch core.CatalogItem, set map[string]bool) core.CatalogItem {
	out := current
	if set["name"] {
		out.Name = patch.Name
	}
	if set["category"] {
		out.Category = patch.Category
	}
	if set["subcategory"] {
		out.Subcategory = patch.Subcategory
	}
	if set["cas"] {
		out.CASNumber = patch.CASNumber
	}
	if set["formula"] {
		out.MolecularFormula = patch.MolecularFormula
	}
	if set["ghs-pictograms"] {
		out.GHSPictograms = patch.GHSPictograms
	}
	if set["ghs-hazards"] {
		out.GHSHazards = patch.GHSHazards
	}
	if set["description"] {
		out.Description = patch.Description
	}
	if set["manufacturer"] {
		out.Manufacturer = patch.Manufacturer
	}
	if set["min-stock"] {
		out.MinStockLevel = patch.MinStockLevel
	}
	return out
}

func bindBatchFlags(fs *flag.FlagSet, batch *core.Batch) *string {
	fs.StringVar(&batch.ID, "id", batch.ID, "batch id (generated when empty)")
	fs.StringVar(&batch.CatalogID, "catalog-id", batch.CatalogID, "catalog item the batch belongs to")
	fs.StringVar(&batch.LotNumber, "lot", batch.LotNumber, "manufacturer lot number")
	fs.Float64Var(&batch.Quantity, "quantity", batch.Quantity, "quantity on hand")
	fs.Func("unit", "L, mL, g, kg, units or pcs", func(s string) error {
		batch.Unit = core.Unit(strings.TrimSpace(s))
		return nil
	})
	fs.StringVar(&batch.LocationID, "location", batch.LocationID, "storage location id")
	fs.Func("qa", "approved, quarantine, rejected or expired", func(s string) error {
		batch.QAStatus = core.QAStatus(strings.ToLower(strings.TrimSpace(s)))
		return nil
	})
	return fs.String("expiry", "", "expiry date as YYYY-MM-DD; empty for none")
}

func applyExpiry(batch *core.Batch, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		batch.ExpiryDate = nil
		return nil
	}
	day, err := time.Parse(time.DateOnly, text)
	if err != nil {
		if ms, perr := strconv.ParseInt(text, 10, 64); perr == nil {
			ts := core.Timestamp(ms)
			batch.ExpiryDate = &ts
			return nil
		}
		return usageErrorf("invalid -expiry %q: want YYYY-MM-DD", text)
	}
	ts := core.TimestampOf(day)
	batch.ExpiryDate = &ts
	return nil
}

func mergeBatch(current, patch core.Batch, set map[string]bool) core.Batch {
	out := current
	if set["catalog-id"] {
		out.CatalogID = patch.CatalogID
	}
	if set["lot"] {
		out.LotNumber = patch.LotNumber
	}
	if set["expiry"] {
		out.ExpiryDate = patch.ExpiryDate
	}
	if set["quantity"] {
		out.Quantity = patch.Quantity
	}
	if set["unit"] {
		out.Unit = patch.Unit
	}
	if set["location"] {
		out.LocationID = patch.LocationID
	}
	if set["qa"] {
		out.QAStatus = patch.QAStatus
	}
	return out
}
