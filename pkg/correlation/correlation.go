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

// Package correlation tags a message exchange with an identifier that is
// carried through the context and into every log line emitted while its
// security configuration is built.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ExchangeIDKey is the context key for storing exchange IDs
	ExchangeIDKey contextKey = "exchange-id"

	// LogField is the attribute name used when the ID is logged
	LogField = "exchange_id"
)

// WithExchangeID adds an exchange ID to the context.
func WithExchangeID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ExchangeIDKey, id)
}

// ExchangeID retrieves the exchange ID from context.
// Returns an empty string if no exchange ID is found.
func ExchangeID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ExchangeIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new UUID v4 exchange ID.
func NewID() string {
	return uuid.New().String()
}
