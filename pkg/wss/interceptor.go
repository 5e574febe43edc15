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

package wss

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/password"
	"github.com/jeremyhahn/go-wssec/pkg/policy"
	"github.com/jeremyhahn/go-wssec/pkg/trust"
)

const (
	// DefaultID is the interceptor id used when none is configured.
	DefaultID = "wss.Interceptor"

	// DefaultPhase is the pipeline phase the interceptor runs in.
	DefaultPhase = "pre-protocol"
)

// Header namespaces the interceptor takes responsibility for.
const (
	WSSE10Namespace = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	WSSE11Namespace = "http://docs.oasis-open.org/wss/oasis-wss-wssecurity-secext-1.1.xsd"
	XMLEncNamespace = "http://www.w3.org/2001/04/xmlenc#"
)

var understoodHeaders = []policy.QName{
	{Space: WSSE10Namespace, Local: "Security"},
	{Space: WSSE11Namespace, Local: "Security"},
	{Space: XMLEncNamespace, Local: "EncryptedData"},
}

// Interceptor builds the security configuration of each exchange on one
// endpoint. It is safe for concurrent use.
type Interceptor struct {
	mu      sync.RWMutex
	id      string
	phase   string
	before  map[string]struct{}
	after   map[string]struct{}
	options *message.MemoryStore
	user    *SecurityProperties

	logger     *logging.Logger
	registry   *callback.Registry
	translator *Translator
	callbacks  *callback.Resolver
	encryptors *password.Resolver
	encOpts    []password.EncryptorOption
	crypto     *trust.Resolver
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithID sets the interceptor id.
func WithID(id string) Option {
	return func(i *Interceptor) {
		i.id = id
	}
}

// WithPhase sets the pipeline phase.
func WithPhase(phase string) Option {
	return func(i *Interceptor) {
		i.phase = phase
	}
}

// WithOptions sets the static options.
func WithOptions(options map[string]any) Option {
	return func(i *Interceptor) {
		i.options = message.NewMemoryStore(options)
	}
}

// WithSecurityProperties makes every Build start from a copy of p instead
// of the static options.
func WithSecurityProperties(p *SecurityProperties) Option {
	return func(i *Interceptor) {
		i.user = p
	}
}

// WithLogger sets the logger shared by the interceptor and its resolvers.
func WithLogger(l *logging.Logger) Option {
	return func(i *Interceptor) {
		i.logger = l
	}
}

// WithRegistry sets the registry used for class-name callback handlers.
func WithRegistry(r *callback.Registry) Option {
	return func(i *Interceptor) {
		i.registry = r
	}
}

// WithTrustResolver replaces the crypto resolver, and with it the
// provider cache.
func WithTrustResolver(r *trust.Resolver) Option {
	return func(i *Interceptor) {
		i.crypto = r
	}
}

// WithEncryptorOptions configures the encryptors wrapped around callback
// handlers.
func WithEncryptorOptions(opts ...password.EncryptorOption) Option {
	return func(i *Interceptor) {
		i.encOpts = append(i.encOpts, opts...)
	}
}

// New returns an interceptor.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{
		id:     DefaultID,
		phase:  DefaultPhase,
		before: make(map[string]struct{}),
		after:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logging.OrDefault(i.logger)
	if i.options == nil {
		i.options = message.NewMemoryStore(nil)
	}
	if i.registry == nil {
		i.registry = callback.DefaultRegistry
	}
	i.translator = NewTranslator(i.logger)
	i.callbacks = callback.NewResolver(
		callback.WithRegistry(i.registry),
		callback.WithLogger(i.logger))
	i.encryptors = password.NewResolver(i.logger, i.encOpts...)
	if i.crypto == nil {
		i.crypto = trust.NewResolver(trust.WithLogger(i.logger))
	}
	return i
}

// ID returns the interceptor id.
func (i *Interceptor) ID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

// SetID changes the interceptor id.
func (i *Interceptor) SetID(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.id = id
}

// Phase returns the pipeline phase.
func (i *Interceptor) Phase() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.phase
}

// SetPhase changes the pipeline phase.
func (i *Interceptor) SetPhase(phase string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.phase = phase
}

// AddBefore records ids of interceptors this one must run before.
func (i *Interceptor) AddBefore(ids ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		i.before[id] = struct{}{}
	}
}

// AddAfter records ids of interceptors this one must run after.
func (i *Interceptor) AddAfter(ids ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		i.after[id] = struct{}{}
	}
}

// Before returns the sorted ids added with AddBefore.
func (i *Interceptor) Before() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.before)
}

// After returns the sorted ids added with AddAfter.
func (i *Interceptor) After() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.after)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Option returns a static option.
func (i *Interceptor) Option(key string) (any, bool) {
	return i.options.Get(key)
}

// SetOption sets a static option. It affects later builds only.
func (i *Interceptor) SetOption(key string, value any) {
	i.options.Put(key, value)
}

// Options returns a copy of the static options.
func (i *Interceptor) Options() map[string]any {
	out := make(map[string]any, i.options.Len())
	for _, k := range i.options.Keys("") {
		if v, ok := i.options.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Property returns the contextual value of key, falling back to the
// static option of the same name.
func (i *Interceptor) Property(ex *message.Exchange, key string) (any, bool) {
	return message.Layered{ex, i.options}.Get(key)
}

// SetProperty stores a message-level property.
func (i *Interceptor) SetProperty(ex *message.Exchange, key string, value any) {
	ex.Put(key, value)
}

// Password returns the literal password visible to ex.
func (i *Interceptor) Password(ex *message.Exchange) string {
	pw, _ := ex.ContextualString(keys.Password)
	return pw
}

// SetPassword stores a literal password on the message.
func (i *Interceptor) SetPassword(ex *message.Exchange, pw string) {
	ex.Put(keys.Password, pw)
}

// UnderstoodHeaders returns the SOAP headers processed by this interceptor.
func (i *Interceptor) UnderstoodHeaders() []policy.QName {
	return append([]policy.QName(nil), understoodHeaders...)
}

// IsRequestor reports whether ex runs on the client side.
func (i *Interceptor) IsRequestor(ex *message.Exchange) bool {
	return ex.IsRequestor()
}

// Crypto returns the resolver holding this interceptor's provider cache.
func (i *Interceptor) Crypto() *trust.Resolver {
	return i.crypto
}

// SecurityProperties returns the starting configuration of a build: a copy
// of the user-supplied properties, or one parsed from the static options.
func (i *Interceptor) SecurityProperties() (*SecurityProperties, error) {
	if i.user != nil {
		return i.user.Clone(), nil
	}
	return ParseOptions(i.options, i.registry)
}

// Build returns the sealed configuration for ex.
//
// The starting configuration is overlaid with the exchange overrides. The
// callback handler and password encryptor are then resolved. Signature and
// encryption providers come from a direct object in the exchange when one
// is present, else from the reference id or properties file options. An
// IncludeTimestamp policy assertion adds the Timestamp action.
func (i *Interceptor) Build(ctx context.Context, ex *message.Exchange) (*SecurityProperties, error) {
	ctx = ex.Context(ctx)
	logger := i.logger.With("exchange_id", ex.ID(), "interceptor", i.ID())

	props, err := i.SecurityProperties()
	if err != nil {
		return nil, err
	}
	if err := i.translator.Apply(ex, props); err != nil {
		return nil, err
	}

	handler, err := i.callbacks.Resolve(ctx, ex)
	if err != nil {
		return nil, err
	}
	if handler != nil {
		props.CallbackHandler = handler
	}
	props.PasswordEncryptor = i.encryptors.Resolve(ex, props.CallbackHandler, i.options)

	bag := message.Layered{ex, i.options}
	props.SignatureCrypto, err = i.resolveCrypto(ctx, ex, bag, trust.Request{
		Role:     trust.RoleSignature,
		FileKey:  keys.SignaturePropFile,
		RefIDKey: keys.SignaturePropRefID,
	}, keys.SignatureCrypto, props.PasswordEncryptor)
	if err != nil {
		return nil, err
	}
	props.EncryptionCrypto, err = i.resolveCrypto(ctx, ex, bag, trust.Request{
		Role:     trust.RoleEncryption,
		FileKey:  keys.EncryptionPropFile,
		RefIDKey: keys.EncryptionPropRefID,
	}, keys.EncryptionCrypto, props.PasswordEncryptor)
	if err != nil {
		return nil, err
	}

	if err := i.applyPolicy(ex, props); err != nil {
		return nil, err
	}

	props.Seal()
	logger.Debug("security configuration resolved",
		"actions", fmt.Sprint(props.Actions),
		"signature_crypto", props.SignatureCrypto != nil,
		"encryption_crypto", props.EncryptionCrypto != nil)
	return props, nil
}

func (i *Interceptor) resolveCrypto(ctx context.Context, ex *message.Exchange, bag message.Bag, req trust.Request, objectKey string, enc password.Encryptor) (trust.Provider, error) {
	if obj, ok := ex.Contextual(objectKey); ok {
		return i.crypto.ResolveFromObject(ctx, ex, obj, req.Role, objectKey, enc)
	}
	return i.crypto.Resolve(ctx, ex, bag, req, enc)
}

func (i *Interceptor) applyPolicy(ex *message.Exchange, props *SecurityProperties) error {
	v, ok := ex.Contextual(policy.AssertionMapKey)
	if !ok {
		return nil
	}
	aim, ok := v.(*policy.AssertionMap)
	if !ok {
		return nil
	}
	ai := policy.FirstByLocalName(aim, policy.IncludeTimestamp)
	if ai == nil {
		return nil
	}
	if err := props.AddAction(ActionTimestamp); err != nil {
		return err
	}
	ai.SetAsserted(true)
	return nil
}
