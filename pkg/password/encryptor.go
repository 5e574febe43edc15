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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"

	"github.com/jeremyhahn/go-wssec/pkg/callback"
)

const (
	encPrefix = "ENC("
	encSuffix = ")"

	saltSize = 16
	keySize  = 32

	// DefaultScryptN is the scrypt CPU/memory cost used by CallbackEncryptor.
	DefaultScryptN = 1 << 15
	scryptR        = 8
	scryptP        = 1

	// maxCachedKeys bounds the derived keys kept per encryptor.
	maxCachedKeys = 64
)

var (
	// ErrNoSecret is returned when the callback handler supplies no master secret.
	ErrNoSecret = errors.New("password: no master secret supplied")

	// ErrNoEncryptor is returned when an ENC(...) value is found but no
	// encryptor is available to decrypt it.
	ErrNoEncryptor = errors.New("password: encrypted value without encryptor")

	// ErrCiphertext is returned for payloads that cannot be decrypted.
	ErrCiphertext = errors.New("password: invalid ciphertext")
)

// Encryptor obscures and reveals configuration passwords.
type Encryptor interface {
	Encrypt(ctx context.Context, plain string) (string, error)
	Decrypt(ctx context.Context, encrypted string) (string, error)
}

// CallbackEncryptor encrypts with AES-256-GCM under a key derived with
// scrypt from the master secret the callback handler returns for
// callback.UsagePasswordEncryptorSecret.
//
// Output is base64(salt | nonce | ciphertext). Keys derived for a salt are
// cached, so the master secret is requested and scrypt runs once per salt.
type CallbackEncryptor struct {
	handler callback.Handler
	n       int
	random  io.Reader

	mu   sync.Mutex
	keys map[string]cipher.AEAD
}

// EncryptorOption configures a CallbackEncryptor.
type EncryptorOption func(*CallbackEncryptor)

// WithScryptN overrides the scrypt cost parameter. It must be a power of
// two greater than 1.
func WithScryptN(n int) EncryptorOption {
	return func(e *CallbackEncryptor) {
		e.n = n
	}
}

// WithRandom sets the source for salts and nonces.
func WithRandom(r io.Reader) EncryptorOption {
	return func(e *CallbackEncryptor) {
		e.random = r
	}
}

// NewCallbackEncryptor creates an encryptor backed by handler.
func NewCallbackEncryptor(handler callback.Handler, opts ...EncryptorOption) *CallbackEncryptor {
	e := &CallbackEncryptor{
		handler: handler,
		n:       DefaultScryptN,
		random:  rand.Reader,
		keys:    make(map[string]cipher.AEAD),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encrypt implements Encryptor.
func (e *CallbackEncryptor) Encrypt(ctx context.Context, plain string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(e.random, salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}

	aead, err := e.aead(ctx, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(e.random, nonce); err != nil {
		return "", fmt.Errorf("password: generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt implements Encryptor.
func (e *CallbackEncryptor) Decrypt(ctx context.Context, encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encrypted))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	if len(raw) < saltSize {
		return "", ErrCiphertext
	}

	aead, err := e.aead(ctx, raw[:saltSize])
	if err != nil {
		return "", err
	}

	rest := raw[saltSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, ct := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return string(plain), nil
}

func (e *CallbackEncryptor) aead(ctx context.Context, salt []byte) (cipher.AEAD, error) {
	if e.handler == nil {
		return nil, ErrNoSecret
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if aead, ok := e.keys[string(salt)]; ok {
		return aead, nil
	}

	aead, err := e.derive(ctx, salt)
	if err != nil {
		return nil, err
	}
	if e.keys == nil || len(e.keys) >= maxCachedKeys {
		e.keys = make(map[string]cipher.AEAD)
	}
	e.keys[string(salt)] = aead
	return aead, nil
}

func (e *CallbackEncryptor) derive(ctx context.Context, salt []byte) (cipher.AEAD, error) {
	pw, err := callback.Password(ctx, e.handler, "", callback.UsagePasswordEncryptorSecret)
	if err != nil {
		return nil, fmt.Errorf("password: master secret: %w", err)
	}
	secret, err := NewSecretFromString(pw)
	if err != nil {
		return nil, ErrNoSecret
	}
	defer secret.Clear()

	material := secret.Bytes()
	defer zero(material)

	key, err := scrypt.Key(material, salt, e.n, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("password: derive key: %w", err)
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsEncrypted reports whether v has the ENC(...) form.
func IsEncrypted(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, encPrefix) && strings.HasSuffix(v, encSuffix)
}

// Wrap returns encrypted in ENC(...) form.
func Wrap(encrypted string) string {
	return encPrefix + encrypted + encSuffix
}

// Unwrap strips the ENC(...) form. ok is false when v is not wrapped.
func Unwrap(v string) (inner string, ok bool) {
	if !IsEncrypted(v) {
		return v, false
	}
	v = strings.TrimSpace(v)
	return v[len(encPrefix) : len(v)-len(encSuffix)], true
}

// Reveal returns v unchanged unless it has the ENC(...) form, in which
// case it is decrypted with enc.
func Reveal(ctx context.Context, enc Encryptor, v string) (string, error) {
	inner, ok := Unwrap(v)
	if !ok {
		return v, nil
	}
	if enc == nil {
		return "", ErrNoEncryptor
	}
	return enc.Decrypt(ctx, inner)
}

var _ Encryptor = (*CallbackEncryptor)(nil)
