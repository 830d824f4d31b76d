package cache

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// memoryCache implements Cache with a plain map. It is the default
// backend and the one tests use.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]*Entry)}
}

func (c *memoryCache) Get(key string) (*Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	e.Hits++
	clone := *e
	return &clone, true, nil
}

func (c *memoryCache) Put(entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := *entry
	if clone.ID == "" {
		clone.ID = newEntryID()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	c.entries[clone.Key] = &clone
	return nil
}

func (c *memoryCache) Entries() ([]*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memoryCache) Close() error {
	return nil
}

// newEntryID generates a ULID so entries sort by creation time
func newEntryID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
