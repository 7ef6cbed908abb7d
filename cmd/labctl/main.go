// Command labctl manages a laboratory inventory: catalog items, batches,
// storage locations, consumption and exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus"

	"labcontrol/internal/blob"
	"labcontrol/internal/config"
	"labcontrol/internal/core"
	"labcontrol/internal/export"
)

var exitFunc = os.Exit

const usage = `usage: labctl [flags] <command> [args]

commands:
  init                                   seed empty collections
  catalog list [-search]|add|update|delete
                                         manage catalog items
  batch list|add|update|delete|consume   manage batches
  locations                              list locations with their batches
  summary | low-stock | expiring | expired | dangling | dashboard
  history [-entity] [-action] [-search]  show recorded changes
  export backup|report|list              write exports to the blob store
`

// errUsage marks errors that should exit with status 2.
var errUsage = errors.New("usage")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("labctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	var (
		configFile string
		envFile    string
		jsonOut    bool
		trace      bool
		nowFlag    string
	)
	fs.StringVar(&configFile, "config", "", "optional config file (yaml, toml or json)")
	fs.StringVar(&envFile, "env-file", "", "env file to load before reading LABCONTROL_* variables (default .env)")
	fs.BoolVar(&jsonOut, "json", false, "print results as JSON")
	fs.BoolVar(&trace, "trace", false, "write operation spans as JSON lines to stderr")
	fs.StringVar(&nowFlag, "now", "", "override the current time (YYYY-MM-DD or RFC3339)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(config.Options{EnvFile: envFile, ConfigFile: configFile})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	now, err := parseNow(nowFlag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid -now: %v\n", err)
		return 2
	}

	a, err := newApp(cfg, stdout, stderr, appOptions{json: jsonOut, trace: trace, now: now})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "startup failed: %v\n", err)
		return 1
	}
	err = a.dispatch(context.Background(), fs.Args())
	if cerr := a.close(); err == nil && cerr != nil {
		err = cerr
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		return 2
	case errors.Is(err, core.ErrEmptyActionRequired):
		_, _ = fmt.Fprintln(stderr, "batch would be emptied: rerun with -on-empty=delete or -on-empty=retain")
		return 1
	default:
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

func parseNow(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type appOptions struct {
	json  bool
	trace bool
	now   time.Time
}

type app struct {
	cfg      config.Config
	svc      *core.Service
	stdout   io.Writer
	stderr   io.Writer
	json     bool
	logger   cmtlog.Logger
	registry *prometheus.Registry
	history  *core.HistoryLog
	histFile *os.File
}

func newApp(cfg config.Config, stdout, stderr io.Writer, opts appOptions) (*app, error) {
	logger, err := cmtflags.ParseLogLevel(cfg.Log.Level, cmtlog.NewTMLogger(cmtlog.NewSyncWriter(stderr)), "info")
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return nil, err
	}

	kv, err := core.OpenKeyValueStore(core.StorageOptions{
		Driver:     core.StorageDriver(cfg.Storage.Driver),
		SQLitePath: cfg.Storage.SQLitePath,
		BadgerDir:  cfg.Storage.BadgerDir,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	svcOpts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithKeyPrefix(cfg.Storage.KeyPrefix),
		core.WithExpiryWindow(cfg.Inventory.ExpiryWindow),
		core.WithStrictIDs(cfg.Inventory.StrictIDs),
	}
	if opts.trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(stderr)))
	}
	if !opts.now.IsZero() {
		fixed := opts.now
		svcOpts = append(svcOpts, core.WithClock(core.ClockFunc(func() time.Time { return fixed })))
	}

	a := &app{cfg: cfg, stdout: stdout, stderr: stderr, json: opts.json, logger: logger, registry: registry}
	if cfg.History.File != "" {
		f, err := os.OpenFile(cfg.History.File, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("open history file: %w", err)
		}
		history, err := core.LoadHistory(f, f, 0)
		if err != nil {
			_ = f.Close()
			_ = kv.Close()
			return nil, fmt.Errorf("load history file: %w", err)
		}
		a.history, a.histFile = history, f
		svcOpts = append(svcOpts, core.WithAuditRecorder(history))
	}
	a.svc = core.NewService(kv, svcOpts...)
	return a, nil
}

func (a *app) close() error {
	var errs []error
	if a.cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.histFile != nil {
		errs = append(errs, a.histFile.Close())
	}
	errs = append(errs, a.svc.Close())
	return errors.Join(errs...)
}

func (a *app) exporter(ctx context.Context) (*export.Exporter, error) {
	store, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(a.cfg.Blob.Driver),
		FSRoot: a.cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          a.cfg.Blob.S3.Bucket,
			Region:          a.cfg.Blob.S3.Region,
			Endpoint:        a.cfg.Blob.S3.Endpoint,
			Prefix:          a.cfg.Blob.S3.Prefix,
			PathStyle:       a.cfg.Blob.S3.PathStyle,
			AccessKeyID:     a.cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: a.cfg.Blob.S3.SecretAccessKey,
		},
	})
	if err != nil {
		return nil, err
	}
	return export.NewExporter(a.svc, store, a.logger), nil
}

// seedIfEnabled runs Init before read commands so a fresh store shows the starter data.
func (a *app) seedIfEnabled(ctx context.Context) error {
	if !a.cfg.Seed.Enabled {
		return nil
	}
	_, err := a.svc.Init(ctx)
	return err
}
