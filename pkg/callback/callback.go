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

// Package callback supplies secrets to cryptographic processing on demand.
//
// A Handler receives a batch of callbacks and fills in the ones it
// understands. Handlers are resolved per exchange by Resolver, either from
// an explicit override, from a registered handler name, or from a literal
// password found in exchange context.
package callback

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedCallback is returned by handlers that refuse a callback.
	ErrUnsupportedCallback = errors.New("callback: unsupported callback")

	// ErrUnknownHandler is returned when a handler name is not registered.
	ErrUnknownHandler = errors.New("callback: unknown handler")
)

// Usage tells the handler why a password is requested.
type Usage int

const (
	UsageUnknown Usage = iota
	UsageDecrypt
	UsageUsernameToken
	UsageSignature
	UsageSecurityContextToken
	UsageCustomToken
	UsageSecretKey
	UsagePasswordEncryptorSecret
)

// String returns the usage name.
func (u Usage) String() string {
	switch u {
	case UsageDecrypt:
		return "decrypt"
	case UsageUsernameToken:
		return "username_token"
	case UsageSignature:
		return "signature"
	case UsageSecurityContextToken:
		return "security_context_token"
	case UsageCustomToken:
		return "custom_token"
	case UsageSecretKey:
		return "secret_key"
	case UsagePasswordEncryptorSecret:
		return "password_encryptor_secret"
	default:
		return "unknown"
	}
}

// Callback is a request handed to a Handler.
type Callback interface {
	// Type names the kind of callback.
	Type() string
}

// PasswordCallback requests the password for an identifier.
type PasswordCallback struct {
	Identifier string
	Usage      Usage
	Password   string
}

// Type implements Callback.
func (*PasswordCallback) Type() string { return "password" }

// NameCallback requests a user name.
type NameCallback struct {
	Prompt string
	Name   string
}

// Type implements Callback.
func (*NameCallback) Type() string { return "name" }

// Handler fills in callbacks.
type Handler interface {
	Handle(ctx context.Context, callbacks ...Callback) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, callbacks ...Callback) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, callbacks ...Callback) error {
	return f(ctx, callbacks...)
}

// PasswordHandler answers every password callback with one literal
// password. Other callbacks are left untouched.
type PasswordHandler struct {
	password string
}

// NewPasswordHandler creates a handler for a literal password.
func NewPasswordHandler(password string) *PasswordHandler {
	return &PasswordHandler{password: password}
}

// Handle implements Handler.
func (h *PasswordHandler) Handle(_ context.Context, callbacks ...Callback) error {
	for _, cb := range callbacks {
		if pc, ok := cb.(*PasswordCallback); ok {
			pc.Password = h.password
		}
	}
	return nil
}

// MapHandler answers password callbacks from a map keyed by identifier.
// Identifiers without an entry fall back to the Default password.
type MapHandler struct {
	Passwords map[string]string
	Default   string
}

// Handle implements Handler.
func (h *MapHandler) Handle(_ context.Context, callbacks ...Callback) error {
	for _, cb := range callbacks {
		pc, ok := cb.(*PasswordCallback)
		if !ok {
			continue
		}
		if pw, ok := h.Passwords[pc.Identifier]; ok {
			pc.Password = pw
			continue
		}
		pc.Password = h.Default
	}
	return nil
}

// Password asks h for the password of identifier.
func Password(ctx context.Context, h Handler, identifier string, usage Usage) (string, error) {
	pc := &PasswordCallback{Identifier: identifier, Usage: usage}
	if err := h.Handle(ctx, pc); err != nil {
		return "", err
	}
	return pc.Password, nil
}

var (
	_ Handler = (*PasswordHandler)(nil)
	_ Handler = (*MapHandler)(nil)
	_ Handler = HandlerFunc(nil)
)
