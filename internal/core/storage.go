package core

import (
	"fmt"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"labcontrol/internal/infra/persistence/badger"
	"labcontrol/internal/infra/persistence/memory"
	"labcontrol/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete key-value backend.
type StorageDriver string

const (
	StorageMemory StorageDriver = "memory" // process-local, lost on exit
	StorageSQLite StorageDriver = "sqlite" // embedded sqlite file
	StorageBadger StorageDriver = "badger" // embedded badger directory
)

// StorageOptions selects and locates a backend.
type StorageOptions struct {
	Driver     StorageDriver
	SQLitePath string
	BadgerDir  string
	// BadgerInMemory runs badger without touching disk.
	BadgerInMemory bool
	Logger         cmtlog.Logger
}

// OpenKeyValueStore opens the backend named by opts.Driver, defaulting to sqlite.
func OpenKeyValueStore(opts StorageOptions) (KeyValueStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageBadger:
		store, err := badger.NewStore(badger.Options{
			Dir:      opts.BadgerDir,
			InMemory: opts.BadgerInMemory,
			Logger:   opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
