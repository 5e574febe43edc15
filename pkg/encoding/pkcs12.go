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

package encoding

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// DecodePKCS12 decodes a PKCS#12 archive holding a private key and its
// chain. The returned chain is leaf first.
func DecodePKCS12(data []byte, password string) (crypto.PrivateKey, []*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, nil, ErrInvalidData
	}

	key, leaf, cas, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, ErrInvalidPassword
		}
		return nil, nil, fmt.Errorf("failed to decode PKCS#12: %w", err)
	}

	chain := make([]*x509.Certificate, 0, len(cas)+1)
	chain = append(chain, leaf)
	chain = append(chain, cas...)
	return key, chain, nil
}

// DecodePKCS12TrustStore decodes a PKCS#12 archive holding only trusted
// certificates.
func DecodePKCS12TrustStore(data []byte, password string) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to decode PKCS#12 trust store: %w", err)
	}
	return certs, nil
}

// EncodePKCS12 writes a key and chain, leaf first, as a PKCS#12 archive.
func EncodePKCS12(privateKey crypto.PrivateKey, chain []*x509.Certificate, password string) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	if len(chain) == 0 || chain[0] == nil {
		return nil, ErrInvalidCertificate
	}
	return pkcs12.Modern.Encode(privateKey, chain[0], chain[1:], password)
}
