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

package trust

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/metrics"
	"github.com/jeremyhahn/go-wssec/pkg/password"
	"github.com/jeremyhahn/go-wssec/pkg/ratelimit"
	"github.com/jeremyhahn/go-wssec/pkg/resource"
	"github.com/jeremyhahn/go-wssec/pkg/validation"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

// Crypto roles.
const (
	RoleSignature  = "signature"
	RoleEncryption = "encryption"
)

// Request names the properties consulted to resolve one role.
type Request struct {
	Role     string
	FileKey  string
	RefIDKey string
}

// Resolver finds the provider for a crypto role. One Resolver belongs to
// one interceptor and owns its Cache.
type Resolver struct {
	cache   *Cache
	factory *Factory
	locator resource.Locator
	urls    *resource.URLLocator
	logger  *logging.Logger
	misses  *ratelimit.Limiter
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the provider cache.
func WithCache(c *Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithFactory sets the provider factory.
func WithFactory(f *Factory) ResolverOption {
	return func(r *Resolver) {
		r.factory = f
	}
}

// WithLocator sets the locator tried first for properties files.
func WithLocator(l resource.Locator) ResolverOption {
	return func(r *Resolver) {
		r.locator = l
	}
}

// WithURLLocator sets the locator for file URLs given as direct objects.
func WithURLLocator(l *resource.URLLocator) ResolverOption {
	return func(r *Resolver) {
		r.urls = l
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l *logging.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMissLogLimit limits how often a miss for the same reference id or
// file is logged.
func WithMissLogLimit(every time.Duration, burst int) ResolverOption {
	return func(r *Resolver) {
		r.misses = ratelimit.New(&ratelimit.Config{
			Enabled: true,
			Every:   every,
			Burst:   burst,
		})
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		misses: ratelimit.New(&ratelimit.Config{
			Enabled: true,
			Every:   time.Second,
			Burst:   10,
		}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDefault(r.logger)
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.factory == nil {
		r.factory = NewFactory(r.locator, r.logger)
	}
	if r.locator == nil {
		r.locator = r.factory.Locator()
	}
	if r.urls == nil {
		r.urls = resource.NewURLLocator(nil)
	}
	return r
}

// Cache returns the provider cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve finds the provider for req through props, which is usually the
// exchange context layered over the static options.
//
// A reference id under req.RefIDKey is tried first: the object stored in
// props under that id is used when it is a Provider or a property bag.
// Otherwise the properties file named under req.FileKey is loaded. Results
// are cached under the id or file name. Resolve returns nil when neither
// yields a provider. A property bag under the reference id that cannot
// build a provider is a configuration error, as is a failure of the
// last-resort NewFromName for a properties file that could not be loaded.
func (r *Resolver) Resolve(ctx context.Context, ex *message.Exchange, props message.Bag, req Request, enc password.Encryptor) (Provider, error) {
	if refID, ok := message.String(props, req.RefIDKey); ok && refID != "" {
		start := time.Now()
		p, err := r.resolveRefID(ctx, props, refID, enc)
		if err != nil {
			metrics.RecordResolution(req.Role, metrics.SourceRefID, metrics.StatusError, time.Since(start).Seconds())
			return nil, err
		}
		if p != nil {
			metrics.RecordResolution(req.Role, metrics.SourceRefID, metrics.StatusSuccess, time.Since(start).Seconds())
			return p, nil
		}
		metrics.RecordResolution(req.Role, metrics.SourceRefID, metrics.StatusMiss, time.Since(start).Seconds())
		r.miss(ex, refID, "crypto reference could not be loaded",
			"ref_id", validation.SanitizeForLog(refID),
			"key", req.RefIDKey)
	}

	propFile, ok := message.String(props, req.FileKey)
	if !ok || propFile == "" {
		return nil, nil
	}

	start := time.Now()
	if p, ok := r.cache.Get(propFile); ok {
		metrics.RecordResolution(req.Role, metrics.SourceFile, metrics.StatusSuccess, time.Since(start).Seconds())
		return p, nil
	}

	p, err := r.loadFromPropertiesFile(ctx, ex, propFile, enc)
	if err != nil {
		metrics.RecordResolution(req.Role, metrics.SourceFile, metrics.StatusError, time.Since(start).Seconds())
		r.miss(ex, propFile, "crypto properties file could not be loaded or found",
			"file", validation.SanitizeForLog(propFile),
			"key", req.FileKey,
			"error", err)
		return nil, wsserr.Configuration("trust.Resolve", err)
	}
	r.cache.Put(propFile, p)
	metrics.RecordResolution(req.Role, metrics.SourceFile, metrics.StatusSuccess, time.Since(start).Seconds())
	return p, nil
}

func (r *Resolver) resolveRefID(ctx context.Context, props message.Bag, refID string, enc password.Encryptor) (Provider, error) {
	if p, ok := r.cache.Get(refID); ok {
		return p, nil
	}

	obj, ok := props.Get(refID)
	if !ok {
		return nil, nil
	}
	if p, ok := obj.(Provider); ok {
		r.cache.Put(refID, p)
		return p, nil
	}
	bag, ok := AsProperties(obj)
	if !ok {
		return nil, nil
	}
	p, err := r.factory.New(ctx, bag, enc)
	if err != nil {
		return nil, wsserr.Configuration("trust.Resolve",
			fmt.Errorf("crypto reference %q: %w", refID, err))
	}
	r.cache.Put(refID, p)
	return p, nil
}

// loadFromPropertiesFile tries the resolver locator, then the exchange
// resource manager with its loader installed in the context. Load and
// parse failures along the way are logged and skipped; when both fail the
// name itself is opened as a keystore.
func (r *Resolver) loadFromPropertiesFile(ctx context.Context, ex *message.Exchange, name string, enc password.Encryptor) (Provider, error) {
	data, err := r.locator.Load(ctx, name)
	if err != nil {
		r.logger.Debug("properties file not found by locator",
			"file", name,
			"error", err)
		if manager := ex.Resources(); manager != nil {
			ctx = resource.WithLoader(ctx, manager.Loader())
			data, err = manager.Load(ctx, name)
			if err != nil {
				r.logger.Debug("properties file not found by resource manager",
					"file", name,
					"error", err)
			}
		}
	}

	if err == nil {
		p, perr := r.fromBytes(ctx, data, enc)
		if perr == nil {
			return p, nil
		}
		r.logger.Debug("properties file rejected",
			"file", name,
			"error", perr)
	}

	return r.factory.NewFromName(ctx, name)
}

func (r *Resolver) fromBytes(ctx context.Context, data []byte, enc password.Encryptor) (Provider, error) {
	props, err := ParseProperties(data)
	if err != nil {
		return nil, err
	}
	return r.factory.New(ctx, props, enc)
}

// ResolveFromObject resolves a provider placed directly in exchange
// context under key. obj may be a Provider, a property bag, a resource
// name or a file URL. Providers pass through unchanged; anything else is
// built and then published to the endpoint under key, where later
// exchanges pick it up as a Provider. An entry already published from the
// same properties is adopted so concurrent exchanges share one provider;
// an entry from other properties is replaced.
//
// A nil obj yields nil. Any failure to obtain usable properties is a
// configuration error.
func (r *Resolver) ResolveFromObject(ctx context.Context, ex *message.Exchange, obj any, role, key string, enc password.Encryptor) (Provider, error) {
	if obj == nil {
		return nil, nil
	}
	if p, ok := obj.(Provider); ok {
		return p, nil
	}

	start := time.Now()
	props, err := r.objectProperties(ctx, ex, obj)
	if err != nil {
		metrics.RecordResolution(role, metrics.SourceObject, metrics.StatusError, time.Since(start).Seconds())
		return nil, wsserr.Configuration("trust.ResolveFromObject",
			fmt.Errorf("cannot find crypto %s properties %v: %w", role, obj, err))
	}

	p, err := r.factory.New(ctx, props, enc)
	if err != nil {
		metrics.RecordResolution(role, metrics.SourceObject, metrics.StatusError, time.Since(start).Seconds())
		return nil, wsserr.Configuration("trust.ResolveFromObject", err)
	}

	own := &publishedProvider{Provider: p, source: props.fingerprint()}
	stored := ex.Endpoint().Update(key, func(current any, ok bool) (any, bool) {
		if existing, isPublished := current.(*publishedProvider); ok && isPublished && existing.source == own.source {
			return existing, false
		}
		return own, true
	})
	if winner, ok := stored.(Provider); ok {
		p = winner
	}

	metrics.RecordResolution(role, metrics.SourceObject, metrics.StatusSuccess, time.Since(start).Seconds())
	return p, nil
}

// publishedProvider is a provider stored on an endpoint together with the
// fingerprint of the properties it was built from.
type publishedProvider struct {
	Provider
	source string
}

func (r *Resolver) objectProperties(ctx context.Context, ex *message.Exchange, obj any) (Properties, error) {
	if props, ok := AsProperties(obj); ok {
		return props, nil
	}

	var (
		data []byte
		err  error
	)
	switch t := obj.(type) {
	case *url.URL:
		data, err = r.urls.LoadURL(ctx, t)
	case url.URL:
		data, err = r.urls.LoadURL(ctx, &t)
	case string:
		data, err = r.locate(ctx, ex, t)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", resource.ErrMalformed, obj)
	}
	if err != nil {
		return nil, err
	}
	return ParseProperties(data)
}

// locate resolves a resource name through the exchange resource manager,
// then the resolver locator, then as a file URL.
func (r *Resolver) locate(ctx context.Context, ex *message.Exchange, name string) ([]byte, error) {
	var firstErr error
	try := func(l resource.Locator) ([]byte, bool) {
		data, err := l.Load(ctx, name)
		if err != nil {
			if firstErr == nil && !resource.IsNotFound(err) {
				firstErr = err
			}
			return nil, false
		}
		return data, true
	}

	if manager := ex.Resources(); manager != nil {
		if data, ok := try(manager); ok {
			return data, nil
		}
	}
	if data, ok := try(r.locator); ok {
		return data, nil
	}
	if data, ok := try(r.urls); ok {
		return data, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s", resource.ErrNotFound, name)
}

func (r *Resolver) miss(ex *message.Exchange, name, msg string, args ...any) {
	if !r.misses.Allow(name) {
		return
	}
	r.logger.Info(msg, append([]any{"exchange_id", ex.ID()}, args...)...)
}
