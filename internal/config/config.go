// Package config loads pipeline settings from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// File is the on-disk configuration shape. Zero values select the
// built-in defaults.
type File struct {
	// Algorithm names the digest algorithm: "blake3" or "sha256".
	Algorithm string `yaml:"algorithm"`

	// MemoryLimitMB bounds the in-memory store, 0 for the default.
	MemoryLimitMB uint64 `yaml:"memoryLimitMB"`
	// Unlimited disables the memory quota.
	Unlimited bool `yaml:"unlimited"`
	// EnableEvents turns on the store's event log.
	EnableEvents bool `yaml:"enableEvents"`
	// MaxEvents caps the event log, 0 for the default.
	MaxEvents int `yaml:"maxEvents"`

	// CatalogPath is the hash catalog's directory; empty runs it in
	// memory.
	CatalogPath string `yaml:"catalogPath"`
	// BatchSize groups catalog lookups, 0 for the default.
	BatchSize int `yaml:"batchSize"`
	// CacheSize bounds the detector's session cache, 0 for the
	// default.
	CacheSize int `yaml:"cacheSize"`

	// WorkerCount sizes the hashing worker pool, 0 for the default.
	WorkerCount int `yaml:"workerCount"`

	// LogLevel is a logrus level name ("debug", "info", "warn",
	// "error"); empty means "info".
	LogLevel string `yaml:"logLevel"`
}

// Load reads and parses the file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return File{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

func (f File) validate() error {
	switch f.Algorithm {
	case "", "blake3", "sha256":
	default:
		return fmt.Errorf("unknown algorithm %q", f.Algorithm)
	}
	if f.Unlimited && f.MemoryLimitMB != 0 {
		return fmt.Errorf("memoryLimitMB and unlimited are mutually exclusive")
	}
	return nil
}
