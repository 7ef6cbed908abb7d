// Package config loads labcontrol settings from an optional .env file, an
// optional config file and LABCONTROL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LABCONTROL"

// Config is the fully resolved configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	History   HistoryConfig   `mapstructure:"history"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerDir  string `mapstructure:"badger_dir"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type SeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type InventoryConfig struct {
	ExpiryWindow time.Duration `mapstructure:"expiry_window"`
	StrictIDs    bool          `mapstructure:"strict_ids"`
}

type BlobConfig struct {
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// HistoryConfig names the JSON-lines file that mutation history is appended
// to. Empty disables the file.
type HistoryConfig struct {
	File string `mapstructure:"file"`
}

var defaults = map[string]any{
	"storage.driver":      "sqlite",
	"storage.sqlite_path": "labcontrol.db",
	"storage.badger_dir":  "labcontrol-badger",
	"storage.key_prefix":  "labcontrol",

	"seed.enabled": true,

	"inventory.expiry_window": "720h",
	"inventory.strict_ids":    false,

	"blob.driver":               "fs",
	"blob.fs_root":              "./exports",
	"blob.s3.bucket":            "",
	"blob.s3.region":            "us-east-1",
	"blob.s3.endpoint":          "",
	"blob.s3.prefix":            "",
	"blob.s3.path_style":        false,
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",

	"log.level": "info",

	"metrics.textfile": "",

	"history.file": "",
}

// Options control where Load looks for settings.
type Options struct {
	// EnvFile is loaded with godotenv before reading the environment. When
	// empty, ".env" is tried and silently skipped if missing.
	EnvFile string
	// ConfigFile is an optional YAML, TOML or JSON file.
	ConfigFile string
}

// Load resolves the configuration. Precedence, highest first: environment,
// config file, defaults. Variables from the env file never override ones
// already set in the process.
func Load(opts Options) (Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate rejects unknown driver names and non-positive durations.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "badger":
	default:
		return fmt.Errorf("invalid storage.driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("invalid blob.driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return errors.New("blob.s3.bucket required for s3 driver")
	}
	if c.Inventory.ExpiryWindow <= 0 {
		return fmt.Errorf("inventory.expiry_window must be positive, got %s", c.Inventory.ExpiryWindow)
	}
	return nil
}
