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
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeCertificate         = "CERTIFICATE"
)

// Bundle is the content of a PEM keystore file: a certificate chain,
// leaf first, and at most one private key.
type Bundle struct {
	Certificates []*x509.Certificate

	// KeyType is the PEM block type of the key, empty when the file has none.
	KeyType string

	// KeyDER is the raw key block. It stays encoded until the key is
	// requested because encrypted keys need the private password.
	KeyDER []byte
}

// HasKey reports whether the bundle carries a private key.
func (b *Bundle) HasKey() bool {
	return len(b.KeyDER) > 0
}

// Encrypted reports whether the private key is password protected.
func (b *Bundle) Encrypted() bool {
	return b.KeyType == PEMTypeEncryptedPrivateKey
}

// PrivateKey decodes the bundle key with password.
func (b *Bundle) PrivateKey(password []byte) (crypto.PrivateKey, error) {
	if !b.HasKey() {
		return nil, ErrInvalidPrivateKey
	}
	switch b.KeyType {
	case PEMTypeRSAPrivateKey:
		return x509.ParsePKCS1PrivateKey(b.KeyDER)
	case PEMTypeECPrivateKey:
		return x509.ParseECPrivateKey(b.KeyDER)
	case PEMTypeEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		return DecodePKCS8(b.KeyDER, password)
	default:
		return DecodePKCS8(b.KeyDER, nil)
	}
}

// DecodeBundle reads every CERTIFICATE block and the first private key
// block from PEM data. Unknown block types are skipped.
func DecodeBundle(data []byte) (*Bundle, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	bundle := &Bundle{}
	remaining := data
	for len(remaining) > 0 {
		var block *pem.Block
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}

		switch block.Type {
		case PEMTypeCertificate:
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate in bundle: %w", err)
			}
			bundle.Certificates = append(bundle.Certificates, cert)
		case PEMTypePrivateKey, PEMTypeEncryptedPrivateKey, PEMTypeRSAPrivateKey, PEMTypeECPrivateKey:
			if bundle.HasKey() {
				continue
			}
			bundle.KeyType = block.Type
			bundle.KeyDER = block.Bytes
		}
	}

	if len(bundle.Certificates) == 0 && !bundle.HasKey() {
		return nil, ErrInvalidPEMEncoding
	}
	return bundle, nil
}

// EncodeBundle writes a PKCS#8 private key followed by the certificate
// chain. The key is encrypted when password is not empty; a nil key
// produces a certificate-only bundle.
func EncodeBundle(privateKey crypto.PrivateKey, certs []*x509.Certificate, password []byte) ([]byte, error) {
	var buf bytes.Buffer

	if privateKey != nil {
		der, err := EncodePKCS8(privateKey, password)
		if err != nil {
			return nil, err
		}
		blockType := PEMTypePrivateKey
		if len(password) > 0 {
			blockType = PEMTypeEncryptedPrivateKey
		}
		if err := pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der}); err != nil {
			return nil, fmt.Errorf("failed to encode PEM: %w", err)
		}
	}

	for _, cert := range certs {
		if cert == nil {
			return nil, ErrInvalidCertificate
		}
		if err := pem.Encode(&buf, &pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw}); err != nil {
			return nil, fmt.Errorf("failed to encode certificate PEM: %w", err)
		}
	}

	if buf.Len() == 0 {
		return nil, ErrInvalidData
	}
	return buf.Bytes(), nil
}

// DecodeCertificateChainPEM decodes PEM encoded data containing multiple certificates.
// Returns all certificates found in the PEM data in order.
func DecodeCertificateChainPEM(data []byte) ([]*x509.Certificate, error) {
	bundle, err := DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	if len(bundle.Certificates) == 0 {
		return nil, ErrInvalidPEMEncoding
	}
	return bundle.Certificates, nil
}
