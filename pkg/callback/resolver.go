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
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/metrics"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

// Resolver picks the password callback handler for an exchange.
type Resolver struct {
	registry *Registry
	logger   *logging.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRegistry sets the registry used to instantiate named handlers.
func WithRegistry(r *Registry) ResolverOption {
	return func(res *Resolver) {
		res.registry = r
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l *logging.Logger) ResolverOption {
	return func(res *Resolver) {
		res.logger = l
	}
}

// NewResolver creates a resolver backed by DefaultRegistry.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{registry: DefaultRegistry}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDefault(r.logger)
	return r
}

// Resolve returns the handler configured for ex, or nil when none is.
//
// An explicit handler under keys.CallbackHandler wins. A string under the
// same key names a registered handler; it is instantiated once and
// published to the endpoint and the exchange so later lookups reuse the
// instance. Failing to instantiate it is a configuration error. Without an
// override, a literal keys.Password is wrapped in a PasswordHandler.
func (r *Resolver) Resolve(ctx context.Context, ex *message.Exchange) (Handler, error) {
	v, ok := ex.Contextual(keys.CallbackHandler)
	if ok {
		switch t := v.(type) {
		case *namedHandler:
			metrics.RecordCallbackResolution(metrics.ProvenanceClassName)
			return t.Handler, nil
		case Handler:
			metrics.RecordCallbackResolution(metrics.ProvenanceOverride)
			return t, nil
		case string:
			name := strings.TrimSpace(t)
			if name == "" {
				break
			}
			h, err := r.instantiate(ex, name)
			if err != nil {
				return nil, err
			}
			metrics.RecordCallbackResolution(metrics.ProvenanceClassName)
			return h, nil
		default:
			r.logger.Warn("ignoring unusable callback handler override",
				"exchange_id", ex.ID(),
				"type", fmt.Sprintf("%T", v))
			metrics.RecordCallbackResolution(metrics.ProvenanceNone)
			return nil, nil
		}
	}

	if pw, ok := ex.ContextualString(keys.Password); ok && pw != "" {
		metrics.RecordCallbackResolution(metrics.ProvenancePassword)
		return NewPasswordHandler(pw), nil
	}

	metrics.RecordCallbackResolution(metrics.ProvenanceNone)
	return nil, nil
}

// namedHandler is an endpoint entry holding the handler instantiated for a
// registered name.
type namedHandler struct {
	Handler
	name string
}

func (r *Resolver) instantiate(ex *message.Exchange, name string) (Handler, error) {
	h, err := r.registry.New(name)
	if err != nil {
		return nil, wsserr.Configuration("callback.Resolve", err)
	}

	// One instance is published per endpoint and name. An instance stored
	// under the same name is adopted; anything else is replaced.
	own := &namedHandler{Handler: h, name: name}
	stored := ex.Endpoint().Update(keys.CallbackHandler, func(current any, ok bool) (any, bool) {
		if existing, isNamed := current.(*namedHandler); ok && isNamed && existing.name == name {
			return existing, false
		}
		return own, true
	})
	if winner, isNamed := stored.(*namedHandler); isNamed {
		h = winner.Handler
	}
	ex.Scope().Put(keys.CallbackHandler, h)

	r.logger.Debug("instantiated callback handler",
		"exchange_id", ex.ID(),
		"name", name)
	return h, nil
}
