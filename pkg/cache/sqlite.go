package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// sqliteCache implements Cache on a SQLite database so cached output
// survives across CLI runs.
type sqliteCache struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT NOT NULL,
	key        TEXT PRIMARY KEY,
	file       TEXT NOT NULL DEFAULT '',
	output     TEXT NOT NULL,
	session    TEXT NOT NULL DEFAULT '',
	hits       INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_by_id ON entries (id);
`

// NewSQLiteCache opens (creating if needed) a SQLite-backed cache
func NewSQLiteCache(cfg *Config) (Cache, error) {
	if cfg.Backend != BackendSQLite {
		return nil, fmt.Errorf("invalid backend type: %s (expected %s)", cfg.Backend, BackendSQLite)
	}

	dbPath := cfg.SQLitePath
	if dbPath == "" {
		dbPath = defaultSQLitePath()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &sqliteCache{db: db, dbPath: dbPath}, nil
}

func defaultSQLitePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cprep", "cache.db")
}

func (c *sqliteCache) Get(key string) (*Entry, bool, error) {
	row := c.db.QueryRow(
		`SELECT id, key, file, output, session, hits, created_at FROM entries WHERE key = ?`, key)
	e := &Entry{}
	err := row.Scan(&e.ID, &e.Key, &e.File, &e.Output, &e.Session, &e.Hits, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	if _, err := c.db.Exec(`UPDATE entries SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return nil, false, fmt.Errorf("cache hit update failed: %w", err)
	}
	e.Hits++
	return e, true, nil
}

func (c *sqliteCache) Put(entry *Entry) error {
	e := *entry
	if e.ID == "" {
		e.ID = newEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := c.db.Exec(
		`INSERT INTO entries (id, key, file, output, session, hits, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			id = excluded.id,
			file = excluded.file,
			output = excluded.output,
			session = excluded.session,
			created_at = excluded.created_at`,
		e.ID, e.Key, e.File, e.Output, e.Session, e.Hits, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("cache insert failed: %w", err)
	}
	return nil
}

func (c *sqliteCache) Entries() ([]*Entry, error) {
	rows, err := c.db.Query(
		`SELECT id, key, file, output, session, hits, created_at FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cache scan failed: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.Key, &e.File, &e.Output, &e.Session, &e.Hits, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("cache row scan failed: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the cache database. Safe to call multiple times.
func (c *sqliteCache) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.db.Close()
	})
	return closeErr
}
