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
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-wssec/internal/testutil"
	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/encoding"
	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/password"
	"github.com/jeremyhahn/go-wssec/pkg/policy"
	"github.com/jeremyhahn/go-wssec/pkg/resource"
	"github.com/jeremyhahn/go-wssec/pkg/trust"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

const aliceProperties = "org.apache.wss4j.crypto.provider=org.apache.wss4j.common.crypto.Merlin\n" +
	"org.apache.wss4j.crypto.merlin.keystore.type=pkcs12\n" +
	"org.apache.wss4j.crypto.merlin.keystore.file=keys/alice.p12\n" +
	"org.apache.wss4j.crypto.merlin.keystore.password=storepass\n"

func newTrustResolver(t *testing.T) *trust.Resolver {
	t.Helper()
	ca := testutil.MustCA(t, "Root")
	alice := testutil.MustIssue(t, ca, "alice")
	p12, err := encoding.EncodePKCS12(alice.Key, alice.Chain(ca), "storepass")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/keys/alice.p12", p12, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/alice.properties", []byte(aliceProperties), 0o644))

	locator := resource.NewFSLocator(fs)
	return trust.NewResolver(
		trust.WithLocator(locator),
		trust.WithFactory(trust.NewFactory(locator, nil)),
		trust.WithURLLocator(resource.NewURLLocator(fs)))
}

func aliceBag() trust.Properties {
	return trust.Properties{
		trust.PropKeystoreFile:     "keys/alice.p12",
		trust.PropKeystorePassword: "storepass",
	}
}

func TestInterceptor_Defaults(t *testing.T) {
	i := New()

	assert.Equal(t, DefaultID, i.ID())
	assert.Equal(t, DefaultPhase, i.Phase())
	assert.Empty(t, i.Before())
	assert.Empty(t, i.After())
	assert.Empty(t, i.Options())
	assert.NotNil(t, i.Crypto())

	i.SetID("custom")
	i.SetPhase("post-protocol")
	i.AddBefore("b", "a")
	i.AddAfter("z")
	assert.Equal(t, "custom", i.ID())
	assert.Equal(t, "post-protocol", i.Phase())
	assert.Equal(t, []string{"a", "b"}, i.Before())
	assert.Equal(t, []string{"z"}, i.After())
}

func TestInterceptor_UnderstoodHeaders(t *testing.T) {
	i := New()
	headers := i.UnderstoodHeaders()

	assert.Equal(t, []policy.QName{
		{Space: WSSE10Namespace, Local: "Security"},
		{Space: WSSE11Namespace, Local: "Security"},
		{Space: XMLEncNamespace, Local: "EncryptedData"},
	}, headers)

	headers[0].Local = "changed"
	assert.Equal(t, "Security", i.UnderstoodHeaders()[0].Local)
}

func TestInterceptor_OptionsAndProperties(t *testing.T) {
	i := New(WithOptions(map[string]any{keys.OptionActor: "static"}))
	i.SetOption(keys.User, "alice")

	opts := i.Options()
	assert.Equal(t, map[string]any{keys.OptionActor: "static", keys.User: "alice"}, opts)
	opts[keys.User] = "mallory"
	v, ok := i.Option(keys.User)
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	ex := exchangeWith(map[string]any{keys.User: "bob"})
	v, ok = i.Property(ex, keys.User)
	require.True(t, ok)
	assert.Equal(t, "bob", v)

	v, ok = i.Property(ex, keys.OptionActor)
	require.True(t, ok)
	assert.Equal(t, "static", v)

	_, ok = i.Property(ex, "missing")
	assert.False(t, ok)

	i.SetProperty(ex, "custom", 1)
	v, _ = ex.Contextual("custom")
	assert.Equal(t, 1, v)
}

func TestInterceptor_Password(t *testing.T) {
	i := New()
	ex := message.NewExchange(message.AsRequestor())

	assert.Empty(t, i.Password(ex))
	i.SetPassword(ex, "secret123")
	assert.Equal(t, "secret123", i.Password(ex))
	assert.True(t, i.IsRequestor(ex))
}

func TestBuild_FromOptions(t *testing.T) {
	i := New(WithOptions(map[string]any{
		keys.Action:    "Timestamp Signature",
		keys.User:      "alice",
		keys.OptionTTL: "120",
	}))
	ex := exchangeWith(map[string]any{
		keys.TimestampTTL:           "300",
		keys.SubjectCertConstraints: "CN=Alice.*, CN=Bob",
	})

	p, err := i.Build(context.Background(), ex)
	require.NoError(t, err)

	assert.True(t, p.Sealed())
	assert.Equal(t, []Action{ActionTimestamp, ActionSignature}, p.Actions)
	assert.Equal(t, "alice", p.User)
	assert.Equal(t, 300, p.TimestampTTL)
	assert.Len(t, p.SubjectCertConstraints, 2)
	assert.Nil(t, p.CallbackHandler)
	assert.Nil(t, p.PasswordEncryptor)
	assert.Nil(t, p.SignatureCrypto)
	assert.Nil(t, p.EncryptionCrypto)
}

func TestBuild_UserPropertiesAreCopied(t *testing.T) {
	user := NewSecurityProperties()
	user.Actor = "static"
	i := New(WithSecurityProperties(user), WithOptions(map[string]any{keys.OptionActor: "ignored"}))

	first, err := i.Build(context.Background(), exchangeWith(map[string]any{keys.Actor: "override"}))
	require.NoError(t, err)
	second, err := i.Build(context.Background(), exchangeWith(nil))
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "override", first.Actor)
	assert.Equal(t, "static", second.Actor)
	assert.Equal(t, "static", user.Actor)
	assert.False(t, user.Sealed())
}

func TestBuild_LiteralPassword(t *testing.T) {
	i := New()
	ex := exchangeWith(map[string]any{keys.Password: "secret123"})

	p, err := i.Build(context.Background(), ex)
	require.NoError(t, err)

	require.NotNil(t, p.CallbackHandler)
	pw, err := callback.Password(context.Background(), p.CallbackHandler, "alice", callback.UsageSignature)
	require.NoError(t, err)
	assert.Equal(t, "secret123", pw)
	assert.IsType(t, &password.CallbackEncryptor{}, p.PasswordEncryptor)
}

func TestBuild_StaticCallbackKeptWithoutOverride(t *testing.T) {
	handler := callback.NewPasswordHandler("static")
	i := New(WithOptions(map[string]any{keys.PasswordCallbackRef: handler}))

	p, err := i.Build(context.Background(), exchangeWith(nil))
	require.NoError(t, err)
	assert.Same(t, handler, p.CallbackHandler)
	assert.NotNil(t, p.PasswordEncryptor)
}

func TestBuild_CallbackClassUnknown(t *testing.T) {
	i := New(WithRegistry(callback.NewRegistry()))
	ex := exchangeWith(map[string]any{keys.CallbackHandler: "com.example.Missing"})

	_, err := i.Build(context.Background(), ex)
	assert.ErrorIs(t, err, wsserr.ErrConfiguration)
	assert.ErrorIs(t, err, callback.ErrUnknownHandler)
}

func TestBuild_MalformedTTL(t *testing.T) {
	_, err := New().Build(context.Background(), exchangeWith(map[string]any{keys.TimestampTTL: "abc"}))
	assert.ErrorIs(t, err, wsserr.ErrConfiguration)
}

func TestBuild_IndirectCrypto(t *testing.T) {
	r := newTrustResolver(t)
	i := New(
		WithTrustResolver(r),
		WithOptions(map[string]any{
			keys.SignaturePropFile: "alice.properties",
		}))
	ex := exchangeWith(map[string]any{
		keys.EncryptionPropRefID: "enc-ref",
		"enc-ref":                aliceBag(),
	})

	p, err := i.Build(context.Background(), ex)
	require.NoError(t, err)

	require.NotNil(t, p.SignatureCrypto)
	require.NotNil(t, p.EncryptionCrypto)
	assert.Equal(t, "alice", p.SignatureCrypto.DefaultAlias())
	assert.Equal(t, 2, r.Cache().Len())

	again, err := i.Build(context.Background(), ex)
	require.NoError(t, err)
	assert.Same(t, p.SignatureCrypto, again.SignatureCrypto)
	assert.Same(t, p.EncryptionCrypto, again.EncryptionCrypto)
}

func TestBuild_DirectCrypto(t *testing.T) {
	i := New(WithTrustResolver(newTrustResolver(t)))
	endpoint := message.NewEndpoint("ep", nil)
	ex := message.NewExchange(
		message.WithEndpoint(endpoint),
		message.WithMessageProperties(map[string]any{
			keys.SignatureCrypto:  aliceBag(),
			keys.EncryptionCrypto: "alice.properties",
		}))

	p, err := i.Build(context.Background(), ex)
	require.NoError(t, err)

	stored, ok := endpoint.Get(keys.SignatureCrypto)
	require.True(t, ok)
	assert.Same(t, p.SignatureCrypto, stored)
	stored, ok = endpoint.Get(keys.EncryptionCrypto)
	require.True(t, ok)
	assert.Same(t, p.EncryptionCrypto, stored)
}

func TestBuild_DirectCryptoMissingIsFatal(t *testing.T) {
	i := New(WithTrustResolver(newTrustResolver(t)))
	ex := exchangeWith(map[string]any{keys.SignatureCrypto: "missing.properties"})

	_, err := i.Build(context.Background(), ex)
	assert.ErrorIs(t, err, wsserr.ErrConfiguration)
}

func TestBuild_ConcurrentDirectCryptoPublishesOnce(t *testing.T) {
	i := New(WithTrustResolver(newTrustResolver(t)))
	endpoint := message.NewEndpoint("ep", nil)

	const workers = 16
	results := make([]trust.Provider, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ex := message.NewExchange(
				message.WithEndpoint(endpoint),
				message.WithMessageProperties(map[string]any{
					keys.SignatureCrypto: aliceBag(),
				}))
			p, err := i.Build(context.Background(), ex)
			errs[n] = err
			if p != nil {
				results[n] = p.SignatureCrypto
			}
		}(n)
	}
	wg.Wait()

	stored, ok := endpoint.Get(keys.SignatureCrypto)
	require.True(t, ok)
	winner, ok := stored.(trust.Provider)
	require.True(t, ok)
	for n := 0; n < workers; n++ {
		require.NoError(t, errs[n])
		assert.Same(t, winner, results[n])
	}

	// Later exchanges see the published provider and use it as is.
	p, err := i.Build(context.Background(), message.NewExchange(message.WithEndpoint(endpoint)))
	require.NoError(t, err)
	assert.Same(t, winner, p.SignatureCrypto)
}

func TestBuild_IncludeTimestampPolicy(t *testing.T) {
	doc := []byte(`<wsp:Policy xmlns:wsp="http://www.w3.org/ns/ws-policy"
    xmlns:sp="http://docs.oasis-open.org/ws-sx/ws-securitypolicy/200702">
  <sp:AsymmetricBinding>
    <wsp:Policy><sp:IncludeTimestamp/></wsp:Policy>
  </sp:AsymmetricBinding>
</wsp:Policy>`)
	aim, err := policy.Parse(doc)
	require.NoError(t, err)

	i := New(WithOptions(map[string]any{keys.Action: "Signature"}))
	p, err := i.Build(context.Background(), exchangeWith(map[string]any{policy.AssertionMapKey: aim}))
	require.NoError(t, err)

	assert.Equal(t, []Action{ActionSignature, ActionTimestamp}, p.Actions)
	ai := policy.FirstByLocalName(aim, policy.IncludeTimestamp)
	require.NotNil(t, ai)
	assert.True(t, ai.Asserted())
}

func TestBuild_NoPolicy(t *testing.T) {
	p, err := New().Build(context.Background(), exchangeWith(map[string]any{
		policy.AssertionMapKey: "not a map",
	}))
	require.NoError(t, err)
	assert.Empty(t, p.Actions)
}
