// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-wssec.
//
// go-wssec is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package trust

import (
	"sync"

	"github.com/jeremyhahn/go-wssec/pkg/metrics"
)

// Cache memoizes providers by reference id or properties file name.
// Entries live as long as the cache; identifiers are expected to be
// stable. Two goroutines missing the same key may both build a provider
// and the later Put wins; the providers are equivalent.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Provider
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Provider)}
}

// Get returns the provider cached under id.
func (c *Cache) Get(id string) (Provider, bool) {
	c.mu.RLock()
	p, ok := c.entries[id]
	c.mu.RUnlock()
	metrics.RecordCacheLookup(ok)
	return p, ok
}

// Put caches p under id. Nil providers are not cached.
func (c *Cache) Put(id string, p Provider) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = p
}

// Len returns the number of cached providers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
