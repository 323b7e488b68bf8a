// Package cache implements the Plan Cache: an append-only, file-backed
// mapping from a canonical question key to the QueryPlan compiled for it,
// read into memory once at process start and guarded by a singleflight
// group so concurrent identical questions compile at most once.
package cache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hagaybar/biblioplan/pkg/queryplan"
)

// Entry is one append-only record: the question key this plan was compiled
// for, the plan itself, and the model identifier that produced it.
type Entry struct {
	Key   string              `json:"key"`
	Plan  queryplan.QueryPlan `json:"plan"`
	Model string              `json:"model"`
}

// Cache is the Plan Cache. Load reads every prior Entry into memory; Get
// returns a cached plan without touching disk; GetOrCompile runs fn at most
// once per key even under concurrent callers, appending a new Entry to disk
// on success.
//
// Cache is safe for concurrent use.
type Cache struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry

	group singleflight.Group
}

// Open loads path (creating it if absent) into memory. path is opened for
// appending on every subsequent write; the file is never rewritten or
// truncated — each successful compilation adds exactly one line.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]Entry)}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("cache: corrupt entry in %s: %w", path, err)
		}
		c.entries[e.Key] = e
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}
	return c, nil
}

// Get returns the cached entry for key, if any, without invoking fn.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// GetOrCompile returns the cached entry for key if present; otherwise it
// calls fn exactly once even if GetOrCompile is called concurrently for the
// same key from multiple goroutines, persists the result, and returns it.
// A cancelled caller still lets the in-flight compilation complete and be
// cached, since the result is a pure function of key.
func (c *Cache) GetOrCompile(key string, model string, fn func() (queryplan.QueryPlan, error)) (Entry, error) {
	if e, ok := c.Get(key); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.Get(key); ok {
			return e, nil
		}
		plan, err := fn()
		if err != nil {
			return Entry{}, err
		}
		entry := Entry{Key: key, Plan: plan, Model: model}
		if err := c.append(entry); err != nil {
			return Entry{}, err
		}
		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (c *Cache) append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cache: open %s for append: %w", c.path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("cache: append to %s: %w", c.path, err)
	}
	return nil
}
