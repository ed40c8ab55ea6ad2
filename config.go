package loreweave

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave/internal/config"
)

// Config configures an Engine. The zero value is usable: BLAKE3
// hashing, an in-memory catalog, and the default memory quota.
type Config struct {
	// Algorithm names the digest algorithm: "blake3" (default) or
	// "sha256".
	Algorithm string

	// MemoryLimit bounds the in-memory block store in bytes; 0 selects
	// the default (a quarter of system memory, capped at 512 MiB).
	MemoryLimit uint64
	// Unlimited disables the memory quota.
	Unlimited bool
	// EnableEvents turns on the store's bounded event log.
	EnableEvents bool
	// MaxEvents caps the event log; 0 means 1000.
	MaxEvents int

	// CatalogPath is the hash catalog's directory. Empty keeps the
	// catalog in memory, which means change detection starts from a
	// blank slate every run.
	CatalogPath string
	// BatchSize groups catalog lookups; 0 means 100.
	BatchSize int
	// CacheSize bounds the detection session cache; 0 means 4096.
	CacheSize int

	// WorkerCount sizes the hashing worker pool; 0 means three per
	// CPU.
	WorkerCount int

	// Logger is an optional structured logger. If nil, an info-level
	// stderr logger is used.
	Logger *logrus.Logger
}

func defaultLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	return log
}

// LoadConfig reads an engine configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := config.Load(path)
	if err != nil {
		return Config{}, err
	}

	log := defaultLogger()
	if f.LogLevel != "" {
		level, err := logrus.ParseLevel(f.LogLevel)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		log.SetLevel(level)
	}

	return Config{
		Algorithm:    f.Algorithm,
		MemoryLimit:  f.MemoryLimitMB * 1024 * 1024,
		Unlimited:    f.Unlimited,
		EnableEvents: f.EnableEvents,
		MaxEvents:    f.MaxEvents,
		CatalogPath:  f.CatalogPath,
		BatchSize:    f.BatchSize,
		CacheSize:    f.CacheSize,
		WorkerCount:  f.WorkerCount,
		Logger:       log,
	}, nil
}
