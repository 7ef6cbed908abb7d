// Package badger persists the record store namespace in an embedded Badger
// key-value database. Every collection key maps to one Badger key, and each
// put is its own atomic update transaction.
package badger

import (
	"context"
	"errors"
	"fmt"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	bdg "github.com/dgraph-io/badger/v4"

	"labcontrol/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain key-value interface.
var _ domain.KeyValueStore = (*Store)(nil)

// Options configures the Badger store.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in memory (tests).
	InMemory bool
	// Logger receives Badger's internal log lines; nil silences them.
	Logger cmtlog.Logger
}

// Store wraps an open Badger database.
type Store struct {
	db  *bdg.DB
	dir string
}

// NewStore opens the Badger database described by opts.
func NewStore(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger directory required")
	}
	bopts := bdg.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = bdg.DefaultOptions("").WithInMemory(true)
	}
	if opts.Logger != nil {
		bopts = bopts.WithLogger(logAdapter{logger: opts.Logger.With("module", "badger")})
	} else {
		bopts = bopts.WithLogger(nil)
	}
	db, err := bdg.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, dir: opts.Dir}, nil
}

// Get reads the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *bdg.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, bdg.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put replaces the value under key in a single update transaction.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := s.db.Update(func(txn *bdg.Txn) error {
		return txn.Set([]byte(key), value)
	}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Dir returns the configured database directory (empty for in-memory stores).
func (s *Store) Dir() string { return s.dir }

// logAdapter routes Badger's printf-style logging onto the structured logger.
type logAdapter struct {
	logger cmtlog.Logger
}

func (l logAdapter) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l logAdapter) Warningf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...), "severity", "warning")
}

func (l logAdapter) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l logAdapter) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
