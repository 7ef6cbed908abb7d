package blob

import (
	"context"
	"fmt"

	"labcontrol/internal/infra/blob/fs"
	"labcontrol/internal/infra/blob/memory"
	"labcontrol/internal/infra/blob/s3"
)

// S3Config configures the s3 driver.
type S3Config = s3.Config

// Options selects and configures a blob driver.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the store named by opts.Driver, defaulting to the filesystem.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(opts.FSRoot)
	case DriverS3:
		return s3.New(ctx, opts.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMemory returns an in-memory store for tests.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests exposes the fake-transport S3 store for cross-package tests.
func NewMockS3ForTests(prefix string) Store { return s3.NewMockForTests(prefix) }
