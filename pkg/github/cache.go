// Package github fetches pull request details used during performance
// regression investigation.
package github

import "sync"

// Cache stores PR file listings keyed by "org/repo/number" so the changed
// files summary and per-file diff lookups share one API walk. Clear it
// before re-analyzing a PR to pick up new pushes.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]PRFile
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]PRFile)}
}

// Get returns the cached file list for key, if present.
func (c *Cache) Get(key string) ([]PRFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	files, ok := c.entries[key]
	return files, ok
}

// Set stores a file list under key.
func (c *Cache) Set(key string, files []PRFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = files
}

// Clear drops all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]PRFile)
}

// Len reports the number of cached PR entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
