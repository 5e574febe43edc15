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

package callback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

type stubHandler struct {
	id int
}

func (s *stubHandler) Handle(context.Context, ...Callback) error { return nil }

func TestPasswordHandler_AnswersPasswordCallbacksOnly(t *testing.T) {
	h := NewPasswordHandler("secret123")
	pc := &PasswordCallback{Identifier: "alice", Usage: UsageSignature}
	nc := &NameCallback{Prompt: "user"}

	require.NoError(t, h.Handle(context.Background(), pc, nc))

	assert.Equal(t, "secret123", pc.Password)
	assert.Empty(t, nc.Name)
}

func TestMapHandler(t *testing.T) {
	h := &MapHandler{
		Passwords: map[string]string{"alice": "a-pw"},
		Default:   "fallback",
	}

	pw, err := Password(context.Background(), h, "alice", UsageDecrypt)
	require.NoError(t, err)
	assert.Equal(t, "a-pw", pw)

	pw, err = Password(context.Background(), h, "bob", UsageDecrypt)
	require.NoError(t, err)
	assert.Equal(t, "fallback", pw)
}

func TestUsage_String(t *testing.T) {
	assert.Equal(t, "signature", UsageSignature.String())
	assert.Equal(t, "password_encryptor_secret", UsagePasswordEncryptorSecret.String())
	assert.Equal(t, "unknown", Usage(99).String())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() (Handler, error) { return &stubHandler{}, nil })
	r.Register("broken", func() (Handler, error) { return nil, errors.New("boom") })
	r.Register("nil", func() (Handler, error) { return nil, nil })

	h, err := r.New("stub")
	require.NoError(t, err)
	assert.IsType(t, &stubHandler{}, h)

	_, err = r.New("missing")
	assert.ErrorIs(t, err, ErrUnknownHandler)

	_, err = r.New("../stub")
	assert.ErrorIs(t, err, ErrUnknownHandler)

	_, err = r.New("broken")
	assert.ErrorContains(t, err, "boom")

	_, err = r.New("nil")
	assert.Error(t, err)

	assert.Equal(t, []string{"broken", "nil", "stub"}, r.Names())
}

func TestDefaultRegistry_HasVault(t *testing.T) {
	assert.Contains(t, DefaultRegistry.Names(), VaultHandlerName)
}

func TestResolver_NoOverrideNoPassword(t *testing.T) {
	h, err := NewResolver().Resolve(context.Background(), message.NewExchange())
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestResolver_LiteralPassword(t *testing.T) {
	ex := message.NewExchange(message.WithMessageProperties(map[string]any{
		keys.Password: "secret123",
	}))

	h, err := NewResolver().Resolve(context.Background(), ex)
	require.NoError(t, err)
	require.NotNil(t, h)

	pc := &PasswordCallback{Identifier: "anyone"}
	nc := &NameCallback{}
	require.NoError(t, h.Handle(context.Background(), pc, nc))
	assert.Equal(t, "secret123", pc.Password)
	assert.Empty(t, nc.Name)
}

func TestResolver_OverrideObjectWins(t *testing.T) {
	override := &stubHandler{id: 7}
	ex := message.NewExchange(message.WithMessageProperties(map[string]any{
		keys.CallbackHandler: override,
		keys.Password:        "ignored",
	}))

	h, err := NewResolver().Resolve(context.Background(), ex)
	require.NoError(t, err)
	assert.Same(t, override, h)
}

func TestResolver_UnusableOverrideIsAbsent(t *testing.T) {
	ex := message.NewExchange(message.WithMessageProperties(map[string]any{
		keys.CallbackHandler: 42,
		keys.Password:        "ignored",
	}))

	h, err := NewResolver().Resolve(context.Background(), ex)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestResolver_ClassNamePublishesInstance(t *testing.T) {
	reg := NewRegistry()
	reg.Register("stub", func() (Handler, error) { return &stubHandler{id: 1}, nil })

	endpoint := message.NewEndpoint("ep", map[string]any{keys.CallbackHandler: "stub"})
	ex := message.NewExchange(message.WithEndpoint(endpoint))

	h, err := NewResolver(WithRegistry(reg)).Resolve(context.Background(), ex)
	require.NoError(t, err)
	require.NotNil(t, h)

	onEndpoint, ok := endpoint.Get(keys.CallbackHandler)
	require.True(t, ok)
	require.IsType(t, &namedHandler{}, onEndpoint)
	assert.Same(t, h, onEndpoint.(*namedHandler).Handler)

	onExchange, ok := ex.Scope().Get(keys.CallbackHandler)
	require.True(t, ok)
	assert.Same(t, h, onExchange)

	// A later exchange on the same endpoint reuses the published instance.
	next := message.NewExchange(message.WithEndpoint(endpoint))
	h2, err := NewResolver(WithRegistry(reg)).Resolve(context.Background(), next)
	require.NoError(t, err)
	assert.Same(t, h, h2)
}

func TestResolver_UnknownClassNameIsFatal(t *testing.T) {
	ex := message.NewExchange(message.WithMessageProperties(map[string]any{
		keys.CallbackHandler: "com.example.Missing",
	}))

	_, err := NewResolver(WithRegistry(NewRegistry())).Resolve(context.Background(), ex)
	require.Error(t, err)
	assert.ErrorIs(t, err, wsserr.ErrConfiguration)
	assert.ErrorIs(t, err, ErrUnknownHandler)
}

func TestResolver_ConcurrentClassNameSingleInstance(t *testing.T) {
	var (
		mu      sync.Mutex
		created int
	)
	reg := NewRegistry()
	reg.Register("stub", func() (Handler, error) {
		mu.Lock()
		defer mu.Unlock()
		created++
		return &stubHandler{id: created}, nil
	})

	endpoint := message.NewEndpoint("ep", map[string]any{keys.CallbackHandler: "stub"})
	resolver := NewResolver(WithRegistry(reg))

	const n = 32
	results := make([]Handler, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ex := message.NewExchange(message.WithEndpoint(endpoint))
			h, err := resolver.Resolve(context.Background(), ex)
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	wg.Wait()

	published, ok := endpoint.Get(keys.CallbackHandler)
	require.True(t, ok)
	require.IsType(t, &namedHandler{}, published)
	for _, h := range results {
		assert.Same(t, published.(*namedHandler).Handler, h)
	}
}

func TestResolver_DifferentClassNameReplacesPublished(t *testing.T) {
	reg := NewRegistry()
	reg.Register("stub", func() (Handler, error) { return &stubHandler{id: 1}, nil })
	reg.Register("other", func() (Handler, error) { return &stubHandler{id: 2}, nil })

	endpoint := message.NewEndpoint("ep", nil)
	resolver := NewResolver(WithRegistry(reg))

	first := message.NewExchange(
		message.WithEndpoint(endpoint),
		message.WithMessageProperties(map[string]any{keys.CallbackHandler: "stub"}))
	h1, err := resolver.Resolve(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, 1, h1.(*stubHandler).id)

	second := message.NewExchange(
		message.WithEndpoint(endpoint),
		message.WithMessageProperties(map[string]any{keys.CallbackHandler: "other"}))
	h2, err := resolver.Resolve(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 2, h2.(*stubHandler).id)

	published, ok := endpoint.Get(keys.CallbackHandler)
	require.True(t, ok)
	assert.Same(t, h2, published.(*namedHandler).Handler)
}

func TestResolver_ConcurrentDifferentClassNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register("stub", func() (Handler, error) { return &stubHandler{id: 1}, nil })
	reg.Register("other", func() (Handler, error) { return &stubHandler{id: 2}, nil })

	endpoint := message.NewEndpoint("ep", nil)
	resolver := NewResolver(WithRegistry(reg))

	const n = 32
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "stub"
			if i%2 == 1 {
				name = "other"
			}
			ex := message.NewExchange(
				message.WithEndpoint(endpoint),
				message.WithMessageProperties(map[string]any{keys.CallbackHandler: name}))
			h, err := resolver.Resolve(context.Background(), ex)
			if assert.NoError(t, err) {
				ids[i] = h.(*stubHandler).id
			}
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		assert.Equal(t, i%2+1, id)
	}
}
