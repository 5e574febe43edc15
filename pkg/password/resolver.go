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
	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/message"
)

// Resolver picks the Encryptor used for one exchange.
type Resolver struct {
	logger *logging.Logger
	opts   []EncryptorOption
}

// NewResolver creates a resolver. Encryptor options are passed to every
// CallbackEncryptor it creates.
func NewResolver(logger *logging.Logger, opts ...EncryptorOption) *Resolver {
	return &Resolver{
		logger: logging.OrDefault(logger),
		opts:   opts,
	}
}

// Resolve returns the Encryptor stored in exchange context under
// keys.PasswordEncryptorInstance when there is one. Otherwise handler, or
// a handler found under keys.PasswordCallbackRef in the static options,
// is wrapped in a CallbackEncryptor. With neither, Resolve returns nil and
// passwords are used as they are.
func (r *Resolver) Resolve(ex *message.Exchange, handler callback.Handler, options message.Bag) Encryptor {
	if v, ok := ex.Contextual(keys.PasswordEncryptorInstance); ok {
		if enc, ok := v.(Encryptor); ok {
			return enc
		}
		r.logger.Debug("ignoring password encryptor of unexpected type",
			"exchange_id", ex.ID())
	}

	if handler == nil && options != nil {
		if v, ok := options.Get(keys.PasswordCallbackRef); ok {
			handler, _ = v.(callback.Handler)
		}
	}
	if handler == nil {
		return nil
	}
	return NewCallbackEncryptor(handler, r.opts...)
}
