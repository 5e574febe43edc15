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

// Package trust resolves the key and certificate stores used to sign,
// verify, encrypt and decrypt messages.
//
// A Provider is built from crypto properties by a Factory. Resolver finds
// the properties for an exchange, either through a reference id, a
// properties file or an object placed directly in exchange context, and
// memoizes the result in a Cache.
package trust

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeremyhahn/go-wssec/pkg/constraint"
	"github.com/jeremyhahn/go-wssec/pkg/encoding"
)

var (
	// ErrUnknownAlias is returned when no entry exists for an alias.
	ErrUnknownAlias = errors.New("trust: unknown alias")

	// ErrNoPrivateKey is returned when the entry holds no private key.
	ErrNoPrivateKey = errors.New("trust: no private key for alias")

	// ErrUntrusted is returned when a chain does not lead to a trusted
	// certificate.
	ErrUntrusted = errors.New("trust: certificate chain is not trusted")

	// ErrSubjectConstraint is returned when a trusted certificate matches
	// none of the subject constraints.
	ErrSubjectConstraint = errors.New("trust: subject does not match any constraint")

	// ErrEmptyChain is returned when VerifyTrust receives no certificates.
	ErrEmptyChain = errors.New("trust: empty certificate chain")
)

// Keystore formats.
const (
	TypePEM    = "pem"
	TypePKCS12 = "pkcs12"
)

// Provider is a key and certificate store.
type Provider interface {
	// Name identifies the store, usually its file name.
	Name() string

	// DefaultAlias is the alias used when none is configured per operation.
	DefaultAlias() string

	// Certificates returns the chain stored under alias, leaf first.
	Certificates(alias string) ([]*x509.Certificate, error)

	// PrivateKey returns the key stored under alias. An empty password
	// selects the configured private password.
	PrivateKey(alias, password string) (crypto.PrivateKey, error)

	// TrustPool returns the trusted certificates as a pool.
	TrustPool() *x509.CertPool

	// VerifyTrust checks that chain leads to a trusted certificate and
	// that the leaf subject matches one of constraints. An empty set of
	// constraints accepts any subject.
	VerifyTrust(chain []*x509.Certificate, constraints constraint.Set) error
}

type entry struct {
	chain  []*x509.Certificate
	key    crypto.PrivateKey
	bundle *encoding.Bundle
}

// KeyStore is the Provider built from crypto properties. It holds one
// private key entry and any number of trusted certificates.
type KeyStore struct {
	name            string
	defaultAlias    string
	privatePassword string
	entries         map[string]*entry
	trusted         []*x509.Certificate
	pool            *x509.CertPool
	now             func() time.Time
}

func newKeyStore(name string) *KeyStore {
	return &KeyStore{
		name:    name,
		entries: make(map[string]*entry),
		pool:    x509.NewCertPool(),
		now:     time.Now,
	}
}

// Name implements Provider.
func (ks *KeyStore) Name() string {
	return ks.name
}

// DefaultAlias implements Provider.
func (ks *KeyStore) DefaultAlias() string {
	return ks.defaultAlias
}

// Aliases returns the aliases of the key entries, sorted.
func (ks *KeyStore) Aliases() []string {
	aliases := make([]string, 0, len(ks.entries))
	for alias := range ks.entries {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Certificates implements Provider.
func (ks *KeyStore) Certificates(alias string) ([]*x509.Certificate, error) {
	e, err := ks.entry(alias)
	if err != nil {
		return nil, err
	}
	out := make([]*x509.Certificate, len(e.chain))
	copy(out, e.chain)
	return out, nil
}

// PrivateKey implements Provider.
func (ks *KeyStore) PrivateKey(alias, password string) (crypto.PrivateKey, error) {
	e, err := ks.entry(alias)
	if err != nil {
		return nil, err
	}
	if e.key != nil {
		return e.key, nil
	}
	if e.bundle == nil || !e.bundle.HasKey() {
		return nil, fmt.Errorf("%w: %s", ErrNoPrivateKey, alias)
	}
	if password == "" {
		password = ks.privatePassword
	}
	return e.bundle.PrivateKey([]byte(password))
}

// TrustPool implements Provider.
func (ks *KeyStore) TrustPool() *x509.CertPool {
	return ks.pool.Clone()
}

// VerifyTrust implements Provider.
func (ks *KeyStore) VerifyTrust(chain []*x509.Certificate, constraints constraint.Set) error {
	if len(chain) == 0 || chain[0] == nil {
		return ErrEmptyChain
	}
	leaf := chain[0]

	if !ks.directlyTrusted(leaf) {
		intermediates := x509.NewCertPool()
		for _, c := range chain[1:] {
			intermediates.AddCert(c)
		}
		_, err := leaf.Verify(x509.VerifyOptions{
			Roots:         ks.pool,
			Intermediates: intermediates,
			CurrentTime:   ks.now(),
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUntrusted, err)
		}
	}

	if len(constraints) > 0 && !constraints.MatchAny(leaf.Subject.String()) {
		return fmt.Errorf("%w: %s", ErrSubjectConstraint, leaf.Subject)
	}
	return nil
}

func (ks *KeyStore) directlyTrusted(cert *x509.Certificate) bool {
	for _, t := range ks.trusted {
		if t.Equal(cert) {
			return true
		}
	}
	return false
}

func (ks *KeyStore) entry(alias string) (*entry, error) {
	if alias == "" {
		alias = ks.defaultAlias
	}
	e, ok := ks.entries[strings.ToLower(alias)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlias, alias)
	}
	return e, nil
}

func (ks *KeyStore) addEntry(alias string, e *entry) {
	ks.entries[strings.ToLower(alias)] = e
	for _, c := range e.chain {
		ks.addTrusted(c)
	}
}

func (ks *KeyStore) addTrusted(certs ...*x509.Certificate) {
	for _, c := range certs {
		if c == nil || ks.directlyTrusted(c) {
			continue
		}
		ks.trusted = append(ks.trusted, c)
		ks.pool.AddCert(c)
	}
}

// defaultAliasFor derives an alias from the leaf common name.
func defaultAliasFor(chain []*x509.Certificate) string {
	if len(chain) == 0 {
		return ""
	}
	return strings.ToLower(chain[0].Subject.CommonName)
}

var _ Provider = (*KeyStore)(nil)
