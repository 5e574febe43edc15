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

package message

import (
	"context"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/correlation"
	"github.com/jeremyhahn/go-wssec/pkg/resource"
)

// Endpoint owns the properties shared by all exchanges on one endpoint.
// Reads are unguarded snapshots; writes go through the store's lock.
type Endpoint struct {
	name  string
	store *MemoryStore
}

// NewEndpoint creates an endpoint seeded with static properties.
func NewEndpoint(name string, properties map[string]any) *Endpoint {
	return &Endpoint{
		name:  name,
		store: NewMemoryStore(properties),
	}
}

// Name returns the endpoint name.
func (e *Endpoint) Name() string {
	return e.name
}

// Get implements Bag.
func (e *Endpoint) Get(key string) (any, bool) {
	return e.store.Get(key)
}

// Put implements Store.
func (e *Endpoint) Put(key string, value any) {
	e.store.Put(key, value)
}

// Update implements SharedStore.
func (e *Endpoint) Update(key string, fn func(current any, ok bool) (any, bool)) any {
	return e.store.Update(key, fn)
}

var _ SharedStore = (*Endpoint)(nil)

// Exchange is one in-flight message exchange. It is owned by a single
// goroutine; only its endpoint is shared.
type Exchange struct {
	id        string
	message   *MemoryStore
	exchange  *MemoryStore
	endpoint  *Endpoint
	resources *resource.Manager
	requestor bool
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithID sets the exchange ID. By default a new UUID is generated.
func WithID(id string) Option {
	return func(e *Exchange) {
		e.id = id
	}
}

// WithMessageProperties seeds the message-level properties.
func WithMessageProperties(props map[string]any) Option {
	return func(e *Exchange) {
		e.message = NewMemoryStore(props)
	}
}

// WithExchangeProperties seeds the exchange-level properties.
func WithExchangeProperties(props map[string]any) Option {
	return func(e *Exchange) {
		e.exchange = NewMemoryStore(props)
	}
}

// WithEndpoint attaches the endpoint the exchange is running on.
func WithEndpoint(endpoint *Endpoint) Option {
	return func(e *Exchange) {
		e.endpoint = endpoint
	}
}

// WithResources attaches the resource manager used for lookups by name.
func WithResources(m *resource.Manager) Option {
	return func(e *Exchange) {
		e.resources = m
	}
}

// AsRequestor marks the exchange as running on the client side.
func AsRequestor() Option {
	return func(e *Exchange) {
		e.requestor = true
	}
}

// NewExchange creates an exchange. Without WithEndpoint an anonymous
// endpoint is created.
func NewExchange(opts ...Option) *Exchange {
	e := &Exchange{}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = correlation.NewID()
	}
	if e.message == nil {
		e.message = NewMemoryStore(nil)
	}
	if e.exchange == nil {
		e.exchange = NewMemoryStore(nil)
	}
	if e.endpoint == nil {
		e.endpoint = NewEndpoint("", nil)
	}
	return e
}

// ID returns the exchange ID.
func (e *Exchange) ID() string {
	return e.id
}

// Context returns ctx tagged with the exchange ID.
func (e *Exchange) Context(ctx context.Context) context.Context {
	return correlation.WithExchangeID(ctx, e.id)
}

// Contextual returns the first value found for key in the message, the
// exchange and then the endpoint.
func (e *Exchange) Contextual(key string) (any, bool) {
	if v, ok := e.message.Get(key); ok && v != nil {
		return v, true
	}
	if v, ok := e.exchange.Get(key); ok && v != nil {
		return v, true
	}
	if v, ok := e.endpoint.Get(key); ok && v != nil {
		return v, true
	}
	return nil, false
}

// Get implements Bag by delegating to Contextual.
func (e *Exchange) Get(key string) (any, bool) {
	return e.Contextual(key)
}

// Put stores a message-level property.
func (e *Exchange) Put(key string, value any) {
	e.message.Put(key, value)
}

// Message returns the message-level store.
func (e *Exchange) Message() Store {
	return e.message
}

// Scope returns the exchange-level store.
func (e *Exchange) Scope() Store {
	return e.exchange
}

// Endpoint returns the endpoint the exchange runs on.
func (e *Exchange) Endpoint() *Endpoint {
	return e.endpoint
}

// Resources returns the resource manager, or nil when none is attached.
func (e *Exchange) Resources() *resource.Manager {
	return e.resources
}

// IsRequestor reports whether the exchange runs on the client side.
func (e *Exchange) IsRequestor() bool {
	return e.requestor
}

// String returns the value stored under key when it is a string.
func String(b Bag, key string) (string, bool) {
	v, ok := b.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsTrue interprets v as a boolean flag. Booleans are taken as is;
// strings "true", "yes" and "1" (any case) are true.
func IsTrue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// ContextualBool returns the flag stored under key, or def when absent.
func (e *Exchange) ContextualBool(key string, def bool) bool {
	v, ok := e.Contextual(key)
	if !ok {
		return def
	}
	return IsTrue(v)
}

// ContextualString returns the string stored under key.
func (e *Exchange) ContextualString(key string) (string, bool) {
	return String(e, key)
}

var _ Store = (*Exchange)(nil)
