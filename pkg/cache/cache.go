// Package cache stores preprocessed output keyed by a digest of the
// input text and the driver configuration, so repeated runs over
// unchanged sources skip the engine entirely. The engine itself never
// consults the cache; it belongs to the CLI layer.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Backend identifies a cache implementation
type Backend string

const (
	// BackendMemory keeps entries in process memory
	BackendMemory Backend = "memory"
	// BackendSQLite persists entries in a SQLite database
	BackendSQLite Backend = "sqlite"
)

// Config selects and configures a cache backend
type Config struct {
	Backend Backend
	// SQLitePath is the database file for BackendSQLite;
	// ":memory:" is accepted for tests
	SQLitePath string
}

// Entry is one cached preprocessing result
type Entry struct {
	// ID is a ULID assigned at insert time, sortable by creation
	ID string
	// Key is the (input, config) digest
	Key string
	// File is the input file name, for inspection only
	File string
	// Output is the preprocessed text
	Output string
	// Session identifies the CLI run that produced the entry
	Session string
	// Hits counts how often the entry was served
	Hits int64
	// CreatedAt is the insert time
	CreatedAt time.Time
}

// Cache stores and retrieves preprocessing results. Implementations
// are safe for concurrent use by multiple goroutines.
type Cache interface {
	// Get returns the entry for key, or ok=false on a miss. A hit
	// increments the entry's hit counter.
	Get(key string) (entry *Entry, ok bool, err error)
	// Put inserts or replaces the entry for entry.Key
	Put(entry *Entry) error
	// Entries returns all entries ordered by ID (creation order)
	Entries() ([]*Entry, error)
	// Close releases backend resources
	Close() error
}

// New creates a cache based on the provided configuration
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryCache(), nil
	case BackendSQLite:
		return NewSQLiteCache(cfg)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Key computes the cache key for one input under one configuration
// fingerprint
func Key(input, configFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(configFingerprint))
	h.Write([]byte{0})
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}
