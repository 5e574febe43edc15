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

package password

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/message"
)

const testScryptN = 1 << 10

func masterHandler(secret string) callback.Handler {
	return callback.HandlerFunc(func(_ context.Context, cbs ...callback.Callback) error {
		for _, cb := range cbs {
			if pc, ok := cb.(*callback.PasswordCallback); ok && pc.Usage == callback.UsagePasswordEncryptorSecret {
				pc.Password = secret
			}
		}
		return nil
	})
}

func TestCallbackEncryptor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	enc := NewCallbackEncryptor(masterHandler("master"), WithScryptN(testScryptN))

	ct, err := enc.Encrypt(ctx, "changeit")
	require.NoError(t, err)
	assert.NotContains(t, ct, "changeit")

	pt, err := enc.Decrypt(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "changeit", pt)
}

func TestCallbackEncryptor_FreshSaltPerCall(t *testing.T) {
	ctx := context.Background()
	enc := NewCallbackEncryptor(masterHandler("master"), WithScryptN(testScryptN))

	a, err := enc.Encrypt(ctx, "changeit")
	require.NoError(t, err)
	b, err := enc.Encrypt(ctx, "changeit")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCallbackEncryptor_DerivesOncePerSalt(t *testing.T) {
	ctx := context.Background()
	ct, err := NewCallbackEncryptor(masterHandler("master"), WithScryptN(testScryptN)).Encrypt(ctx, "changeit")
	require.NoError(t, err)

	var calls atomic.Int32
	counting := callback.HandlerFunc(func(ctx context.Context, cbs ...callback.Callback) error {
		calls.Add(1)
		return masterHandler("master").Handle(ctx, cbs...)
	})
	enc := NewCallbackEncryptor(counting, WithScryptN(testScryptN))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pt, err := enc.Decrypt(ctx, ct)
			if assert.NoError(t, err) {
				assert.Equal(t, "changeit", pt)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	other, err := enc.Encrypt(ctx, "storepass")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	pt, err := enc.Decrypt(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "storepass", pt)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallbackEncryptor_WrongSecret(t *testing.T) {
	ctx := context.Background()
	ct, err := NewCallbackEncryptor(masterHandler("master"), WithScryptN(testScryptN)).Encrypt(ctx, "changeit")
	require.NoError(t, err)

	_, err = NewCallbackEncryptor(masterHandler("other"), WithScryptN(testScryptN)).Decrypt(ctx, ct)
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestCallbackEncryptor_NoSecret(t *testing.T) {
	ctx := context.Background()

	_, err := NewCallbackEncryptor(masterHandler(""), WithScryptN(testScryptN)).Encrypt(ctx, "x")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewCallbackEncryptor(nil).Encrypt(ctx, "x")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestCallbackEncryptor_MalformedInput(t *testing.T) {
	ctx := context.Background()
	enc := NewCallbackEncryptor(masterHandler("master"), WithScryptN(testScryptN))

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "***"},
		{"too short", "YWJj"},
		{"salt only", "AAAAAAAAAAAAAAAAAAAAAA=="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Decrypt(ctx, tt.input)
			assert.ErrorIs(t, err, ErrCiphertext)
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	assert.True(t, IsEncrypted("ENC(abc)"))
	assert.True(t, IsEncrypted("  ENC(abc) "))
	assert.False(t, IsEncrypted("abc"))
	assert.False(t, IsEncrypted("ENC(abc"))

	inner, ok := Unwrap(Wrap("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", inner)

	inner, ok = Unwrap("plain")
	assert.False(t, ok)
	assert.Equal(t, "plain", inner)
}

func TestReveal(t *testing.T) {
	ctx := context.Background()
	enc := NewCallbackEncryptor(masterHandler("master"), WithScryptN(testScryptN))

	plain, err := Reveal(ctx, nil, "changeit")
	require.NoError(t, err)
	assert.Equal(t, "changeit", plain)

	ct, err := enc.Encrypt(ctx, "changeit")
	require.NoError(t, err)

	_, err = Reveal(ctx, nil, Wrap(ct))
	assert.ErrorIs(t, err, ErrNoEncryptor)

	plain, err = Reveal(ctx, enc, Wrap(ct))
	require.NoError(t, err)
	assert.Equal(t, "changeit", plain)
}

type fixedEncryptor struct{}

func (fixedEncryptor) Encrypt(context.Context, string) (string, error) { return "x", nil }
func (fixedEncryptor) Decrypt(context.Context, string) (string, error) { return "y", nil }

func TestResolver_InstanceWins(t *testing.T) {
	ex := message.NewExchange(message.WithMessageProperties(map[string]any{
		keys.PasswordEncryptorInstance: fixedEncryptor{},
	}))

	enc := NewResolver(nil).Resolve(ex, masterHandler("master"), nil)
	assert.Equal(t, fixedEncryptor{}, enc)
}

func TestResolver_WrapsHandler(t *testing.T) {
	enc := NewResolver(nil).Resolve(message.NewExchange(), masterHandler("master"), nil)
	assert.IsType(t, &CallbackEncryptor{}, enc)
}

func TestResolver_LegacyOptionReference(t *testing.T) {
	options := message.NewMemoryStore(map[string]any{
		keys.PasswordCallbackRef: masterHandler("master"),
	})

	enc := NewResolver(nil, WithScryptN(testScryptN)).Resolve(message.NewExchange(), nil, options)
	require.NotNil(t, enc)

	ct, err := enc.Encrypt(context.Background(), "changeit")
	require.NoError(t, err)
	pt, err := enc.Decrypt(context.Background(), ct)
	require.NoError(t, err)
	assert.Equal(t, "changeit", pt)
}

func TestResolver_Absent(t *testing.T) {
	ex := message.NewExchange(message.WithMessageProperties(map[string]any{
		keys.PasswordEncryptorInstance: "not an encryptor",
	}))
	assert.Nil(t, NewResolver(nil).Resolve(ex, nil, nil))
	assert.Nil(t, NewResolver(nil).Resolve(ex, nil, message.NewMemoryStore(nil)))
}
