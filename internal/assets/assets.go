package assets

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Manager imports model files and caches the decoded scenes by path.
type Manager struct {
	cache *Cache
	mu    sync.Mutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// Load imports the model at path, returning the cached scene on repeat calls.
// Callers must treat the returned scene as read-only.
func (m *Manager) Load(path string) (*Scene, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if s, ok := m.cache.Get(abs); ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache.Get(abs); ok {
		return s, nil
	}

	switch ext := strings.ToLower(filepath.Ext(abs)); ext {
	case ".gltf", ".glb":
		s, err := LoadGLTF(abs)
		if err != nil {
			return nil, err
		}
		m.cache.Set(abs, s)
		return s, nil
	default:
		return nil, fmt.Errorf("%s: unsupported model format %q", path, ext)
	}
}

// Stats returns cache hits and misses.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops every cached scene.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache for decoded scenes.
type Cache struct {
	data map[string]*Scene
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*Scene),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return s, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, s *Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = s
}

// Len returns the number of cached scenes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*Scene)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
