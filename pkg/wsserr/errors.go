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

// Package wsserr defines the error kinds raised while resolving the
// security configuration of a message exchange.
//
// Only ConfigurationError is fatal for the exchange. ResolutionMiss and
// PatternError are logged by the component that produced them and never
// escape to the caller of the builder.
package wsserr

import (
	"errors"
)

// Kind classifies a resolution error.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindResolutionMiss Kind = "resolution_miss"
	KindPattern        Kind = "pattern"
)

var (
	// ErrConfiguration matches every fatal configuration error.
	ErrConfiguration = errors.New("wssec: configuration error")

	// ErrResolutionMiss matches lookups that found nothing usable.
	ErrResolutionMiss = errors.New("wssec: resolution miss")

	// ErrPattern matches constraint segments that failed to compile.
	ErrPattern = errors.New("wssec: invalid pattern")
)

// Error carries the kind of failure, the operation that failed and the
// underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "wssec: " + string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrResolutionMiss:
		return e.Kind == KindResolutionMiss
	case ErrPattern:
		return e.Kind == KindPattern
	}
	return false
}

// Configuration wraps err as a fatal configuration error.
func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// Miss wraps err as a non-fatal resolution miss.
func Miss(op string, err error) *Error {
	return &Error{Kind: KindResolutionMiss, Op: op, Err: err}
}

// Pattern wraps err as a non-fatal pattern error.
func Pattern(op string, err error) *Error {
	return &Error{Kind: KindPattern, Op: op, Err: err}
}

// KindOf returns the kind of err, or the empty Kind when err is not an
// *Error.
func KindOf(err error) Kind {
	var typed *Error
	if !errors.As(err, &typed) {
		return ""
	}
	return typed.Kind
}

// IsFatal reports whether err must abort processing of the exchange.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
