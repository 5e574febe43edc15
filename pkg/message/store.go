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

// Package message models the property bags a message exchange exposes to
// the security configuration resolvers: the per-message properties, the
// exchange-scoped store and the endpoint-level store shared by every
// exchange on the same endpoint.
package message

import (
	"sort"
	"strings"
	"sync"
)

// Bag is a read-only keyed property lookup.
type Bag interface {
	// Get returns the value stored under key.
	Get(key string) (any, bool)
}

// Store is a mutable property bag.
type Store interface {
	Bag

	// Put stores value under key, replacing any existing value.
	Put(key string, value any)
}

// SharedStore is a store written concurrently by many exchanges.
// Update runs fn under exclusive access to the store.
type SharedStore interface {
	Store

	// Update calls fn with the current value for key. When fn returns
	// store=true, next is written. Update returns the value held by the
	// store once fn has run.
	Update(key string, fn func(current any, ok bool) (next any, store bool)) any
}

// MemoryStore is a thread-safe in-memory property store.
type MemoryStore struct {
	data map[string]any
	mu   sync.RWMutex
}

// NewMemoryStore creates a store seeded with a copy of initial.
func NewMemoryStore(initial map[string]any) *MemoryStore {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &MemoryStore{data: data}
}

// Get retrieves the value for the given key.
func (m *MemoryStore) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok
}

// Put stores the value for the given key.
func (m *MemoryStore) Put(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
}

// Update implements SharedStore.
func (m *MemoryStore) Update(key string, fn func(current any, ok bool) (any, bool)) any {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.data[key]
	next, store := fn(current, ok)
	if !store {
		return current
	}
	m.data[key] = next
	return next
}

// Keys returns all keys with the given prefix, sorted.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

var _ SharedStore = (*MemoryStore)(nil)

// Layered is a Bag that reads through several bags in order.
type Layered []Bag

// Get implements Bag. Nil bags and nil values are skipped.
func (l Layered) Get(key string) (any, bool) {
	for _, b := range l {
		if b == nil {
			continue
		}
		if v, ok := b.Get(key); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
