package cache

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/pkg/filesystem"
)

// Entry is one cached model classification.
type Entry struct {
	Key       string             `json:"key"`
	Level     domain.ImpactLevel `json:"level"`
	CreatedAt time.Time          `json:"created_at"`
}

// ClassificationCache is a bounded FIFO map from "source:operation" to the
// level a model assigned. When a path is set, every write is mirrored to a
// JSON file so short-lived CLI processes share results.
type ClassificationCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string]Entry
	path     string
	now      func() time.Time
}

// New returns an in-memory cache holding at most capacity entries.
func New(capacity int) *ClassificationCache {
	if capacity <= 0 {
		capacity = domain.DefaultCacheSize
	}
	return &ClassificationCache{
		capacity: capacity,
		entries:  make(map[string]Entry),
		now:      time.Now,
	}
}

// NewPersistent returns a cache backed by the JSON file at path, loading
// any entries already stored there. A corrupt file starts an empty cache.
func NewPersistent(capacity int, path string) (*ClassificationCache, error) {
	c := New(capacity)
	c.path = path
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	var stored []Entry
	if err := json.Unmarshal(data, &stored); err != nil {
		return c, nil
	}
	for _, entry := range stored {
		if entry.Key == "" || !entry.Level.Valid() {
			continue
		}
		c.insertLocked(entry)
	}
	return c, nil
}

// Key builds the cache key for an operation.
func Key(source, operation string) string {
	return source + ":" + operation
}

// Get returns the cached level for key.
func (c *ClassificationCache) Get(key string) (domain.ImpactLevel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry.Level, ok
}

// Put stores a level. Overwriting an existing key keeps its position;
// a new key evicts the oldest entry when the cache is full.
func (c *ClassificationCache) Put(key string, level domain.ImpactLevel) error {
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(Entry{Key: key, Level: level, CreatedAt: c.now()})
	return c.flushLocked()
}

func (c *ClassificationCache) insertLocked(entry Entry) {
	if _, exists := c.entries[entry.Key]; exists {
		c.entries[entry.Key] = entry
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, entry.Key)
	c.entries[entry.Key] = entry
}

// Len reports the number of cached entries.
func (c *ClassificationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Capacity reports the maximum number of entries.
func (c *ClassificationCache) Capacity() int {
	return c.capacity
}

// Entries lists the cache oldest first.
func (c *ClassificationCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// Clear drops every entry and removes the backing file.
func (c *ClassificationCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.entries = make(map[string]Entry)
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path is the backing file, empty for memory-only caches.
func (c *ClassificationCache) Path() string {
	return c.path
}

func (c *ClassificationCache) flushLocked() error {
	if c.path == "" {
		return nil
	}
	out := make([]Entry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	data, err := json.MarshalIndent(out, "", "\t")
	if err != nil {
		return err
	}
	return filesystem.WriteFileAtomic(c.path, append(data, '\n'), domain.SecureFilePermissions)
}
