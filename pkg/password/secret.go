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

// Package password obscures keystore passwords stored in configuration
// and holds secret material in memory.
//
// Values of the form ENC(...) found in crypto properties are decrypted with
// an Encryptor resolved per exchange. The default Encryptor derives its key
// from a master secret supplied by the password callback handler.
package password

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password has been zeroed")
)

// Secret stores a password in memory as cleartext and can be zeroed when
// no longer needed.
type Secret struct {
	password []byte
}

// NewSecretFromString creates a Secret from a string.
func NewSecretFromString(password string) (*Secret, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &Secret{password: []byte(password)}, nil
}

// String returns the password as a string.
func (s *Secret) String() (string, error) {
	if s.password == nil {
		return "", ErrPasswordZeroed
	}
	return string(s.password), nil
}

// Bytes returns a copy of the password.
func (s *Secret) Bytes() []byte {
	if s.password == nil {
		return nil
	}
	result := make([]byte, len(s.password))
	copy(result, s.password)
	return result
}

// Clear zeroes the password. Subsequent calls to String fail and Bytes
// returns nil.
func (s *Secret) Clear() {
	if s.password != nil {
		zero(s.password)
		subtle.ConstantTimeCopy(1, s.password, make([]byte, len(s.password)))
		s.password = nil
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
