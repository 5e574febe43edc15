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
	"crypto/x509"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-wssec/internal/testutil"
	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/constraint"
	"github.com/jeremyhahn/go-wssec/pkg/encoding"
	"github.com/jeremyhahn/go-wssec/pkg/password"
	"github.com/jeremyhahn/go-wssec/pkg/resource"
)

type fixture struct {
	fs      afero.Fs
	locator *resource.FSLocator
	ca      *testutil.TestCA
	alice   *testutil.TestCertificate
	factory *Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	ca := testutil.MustCA(t, "Root")
	alice := testutil.MustIssue(t, ca, "alice")

	encrypted, err := encoding.EncodeBundle(alice.Key, alice.Chain(ca), []byte("keypass"))
	require.NoError(t, err)
	plain, err := encoding.EncodeBundle(alice.Key, alice.Chain(ca), nil)
	require.NoError(t, err)
	p12, err := encoding.EncodePKCS12(alice.Key, alice.Chain(ca), "storepass")
	require.NoError(t, err)

	write(t, fs, "/keys/alice.pem", encrypted)
	write(t, fs, "/keys/plain.pem", plain)
	write(t, fs, "/keys/alice.p12", p12)
	write(t, fs, "/keys/trust.pem", ca.CertPEM)
	write(t, fs, "/alice.properties", []byte(
		"org.apache.wss4j.crypto.provider=org.apache.wss4j.common.crypto.Merlin\n"+
			"org.apache.wss4j.crypto.merlin.keystore.type=pkcs12\n"+
			"org.apache.wss4j.crypto.merlin.keystore.file=keys/alice.p12\n"+
			"org.apache.wss4j.crypto.merlin.keystore.password=storepass\n"+
			"org.apache.wss4j.crypto.merlin.keystore.alias=alice\n"))

	locator := resource.NewFSLocator(fs)
	return &fixture{
		fs:      fs,
		locator: locator,
		ca:      ca,
		alice:   alice,
		factory: NewFactory(locator, nil),
	}
}

func write(t *testing.T, fs afero.Fs, name string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
}

func TestParseProperties(t *testing.T) {
	props, err := ParseProperties([]byte(
		"# comment\n" +
			"org.apache.ws.security.crypto.merlin.keystore.file = legacy.pem\n" +
			"org.apache.wss4j.crypto.merlin.keystore.password=${not.expanded}\n"))
	require.NoError(t, err)

	assert.Equal(t, "legacy.pem", props.Get(PropKeystoreFile))
	assert.Equal(t, "${not.expanded}", props.Get(PropKeystorePassword))
	assert.Empty(t, props.Get(PropTruststoreFile))
	assert.Len(t, props.Keys(), 2)
}

func TestParseProperties_Malformed(t *testing.T) {
	_, err := ParseProperties([]byte("key=\\uZZZZ\n"))
	assert.ErrorIs(t, err, resource.ErrMalformed)
}

func TestAsProperties(t *testing.T) {
	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"Properties", Properties{PropKeystoreFile: "a"}, true},
		{"string map", map[string]string{PropKeystoreFile: "a"}, true},
		{"any map", map[string]any{PropKeystoreFile: "a"}, true},
		{"string", "a.properties", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, ok := AsProperties(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "a", props.Get(PropKeystoreFile))
			}
		})
	}
}

func TestFactory_PKCS12(t *testing.T) {
	f := newFixture(t)

	p, err := f.factory.New(context.Background(), Properties{
		PropKeystoreFile:     "keys/alice.p12",
		PropKeystorePassword: "storepass",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "keys/alice.p12", p.Name())
	assert.Equal(t, "alice", p.DefaultAlias())

	chain, err := p.Certificates("")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.True(t, chain[0].Equal(f.alice.Cert))

	key, err := p.PrivateKey("alice", "")
	require.NoError(t, err)
	assert.True(t, f.alice.Key.Equal(key))
}

func TestFactory_EncryptedPEMWithEncPasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	enc := password.NewCallbackEncryptor(
		callback.NewPasswordHandler("master"), password.WithScryptN(1<<10))

	obscured, err := enc.Encrypt(ctx, "keypass")
	require.NoError(t, err)

	p, err := f.factory.New(ctx, Properties{
		PropKeystoreFile:            "keys/alice.pem",
		PropKeystoreAlias:           "Signer",
		PropKeystorePrivatePassword: password.Wrap(obscured),
	}, enc)
	require.NoError(t, err)
	assert.Equal(t, "signer", p.DefaultAlias())

	key, err := p.PrivateKey("SIGNER", "")
	require.NoError(t, err)
	assert.True(t, f.alice.Key.Equal(key))

	_, err = p.PrivateKey("signer", "wrong")
	assert.Error(t, err)
}

func TestFactory_EncPasswordWithoutEncryptor(t *testing.T) {
	f := newFixture(t)
	_, err := f.factory.New(context.Background(), Properties{
		PropKeystoreFile:     "keys/alice.p12",
		PropKeystorePassword: "ENC(abc)",
	}, nil)
	assert.ErrorIs(t, err, password.ErrNoEncryptor)
}

func TestFactory_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.factory.New(ctx, Properties{}, nil)
	assert.ErrorIs(t, err, ErrNoKeystore)

	_, err = f.factory.New(ctx, Properties{
		PropProvider:     "com.example.HSM",
		PropKeystoreFile: "keys/alice.p12",
	}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = f.factory.New(ctx, Properties{PropKeystoreFile: "keys/missing.p12"}, nil)
	assert.ErrorIs(t, err, resource.ErrNotFound)

	_, err = f.factory.New(ctx, Properties{
		PropKeystoreFile: "keys/alice.pem",
		PropKeystoreType: "jks",
	}, nil)
	assert.ErrorIs(t, err, encoding.ErrUnsupportedFormat)

	_, err = f.factory.New(ctx, Properties{
		PropKeystoreFile:     "keys/alice.p12",
		PropKeystorePassword: "wrong",
	}, nil)
	assert.ErrorIs(t, err, encoding.ErrInvalidPassword)
}

func TestFactory_TruststoreOnly(t *testing.T) {
	f := newFixture(t)

	p, err := f.factory.New(context.Background(), Properties{
		PropTruststoreFile: "keys/trust.pem",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, p.DefaultAlias())

	_, err = p.Certificates("")
	assert.ErrorIs(t, err, ErrUnknownAlias)
	assert.NoError(t, p.VerifyTrust(f.alice.Chain(f.ca), nil))
}

func TestFactory_UsesContextLoader(t *testing.T) {
	f := newFixture(t)
	other := afero.NewMemMapFs()
	plain, err := afero.ReadFile(f.fs, "/keys/plain.pem")
	require.NoError(t, err)
	write(t, other, "/only-here.pem", plain)

	ctx := resource.WithLoader(context.Background(), resource.NewFSLocator(other))
	p, err := f.factory.New(ctx, Properties{PropKeystoreFile: "only-here.pem"}, nil)
	require.NoError(t, err)

	key, err := p.PrivateKey("", "")
	require.NoError(t, err)
	assert.True(t, f.alice.Key.Equal(key))
}

func TestFactory_NewFromName(t *testing.T) {
	f := newFixture(t)

	p, err := f.factory.NewFromName(context.Background(), "keys/plain.pem")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DefaultAlias())

	_, err = f.factory.NewFromName(context.Background(), "keys/nothing.pem")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestStoreType(t *testing.T) {
	assert.Equal(t, TypePKCS12, storeType("", "a.P12"))
	assert.Equal(t, TypePKCS12, storeType("", "a.pfx"))
	assert.Equal(t, TypePEM, storeType("", "a.pem"))
	assert.Equal(t, TypePEM, storeType("PEM", "a.p12"))
	assert.Equal(t, TypePKCS12, storeType("PKCS12", "a.pem"))
	assert.Equal(t, "jks", storeType("JKS", "a.jks"))
}

func TestKeyStore_VerifyTrust(t *testing.T) {
	f := newFixture(t)
	p, err := f.factory.New(context.Background(), Properties{
		PropTruststoreFile: "keys/trust.pem",
	}, nil)
	require.NoError(t, err)

	bob := testutil.MustIssue(t, f.ca, "bob")
	strangerCA := testutil.MustCA(t, "Stranger")
	mallory := testutil.MustIssue(t, strangerCA, "mallory")

	t.Run("trusted without constraints", func(t *testing.T) {
		assert.NoError(t, p.VerifyTrust([]*x509.Certificate{bob.Cert}, nil))
	})

	t.Run("any constraint matching is sufficient", func(t *testing.T) {
		set := constraint.Compile("CN=alice.*, CN=bob.*")
		assert.NoError(t, p.VerifyTrust([]*x509.Certificate{bob.Cert}, set))
		assert.NoError(t, p.VerifyTrust([]*x509.Certificate{f.alice.Cert}, set))
	})

	t.Run("no constraint matching", func(t *testing.T) {
		set := constraint.Compile("CN=carol.*")
		assert.ErrorIs(t, p.VerifyTrust([]*x509.Certificate{bob.Cert}, set), ErrSubjectConstraint)
	})

	t.Run("untrusted issuer", func(t *testing.T) {
		err := p.VerifyTrust(mallory.Chain(strangerCA), nil)
		assert.ErrorIs(t, err, ErrUntrusted)
	})

	t.Run("directly trusted certificate", func(t *testing.T) {
		assert.NoError(t, p.VerifyTrust([]*x509.Certificate{f.ca.Cert}, nil))
	})

	t.Run("empty chain", func(t *testing.T) {
		assert.ErrorIs(t, p.VerifyTrust(nil, nil), ErrEmptyChain)
	})
}

func TestKeyStore_TrustPoolIsCopy(t *testing.T) {
	f := newFixture(t)
	p, err := f.factory.New(context.Background(), Properties{PropTruststoreFile: "keys/trust.pem"}, nil)
	require.NoError(t, err)

	stranger := testutil.MustCA(t, "Stranger")
	pool := p.TrustPool()
	pool.AddCert(stranger.Cert)

	chain := testutil.MustIssue(t, stranger, "x").Chain(stranger)
	assert.ErrorIs(t, p.VerifyTrust(chain, nil), ErrUntrusted)
}

func TestKeyStore_Aliases(t *testing.T) {
	f := newFixture(t)
	p, err := f.factory.New(context.Background(), Properties{
		PropKeystoreFile:     "keys/alice.p12",
		PropKeystorePassword: "storepass",
	}, nil)
	require.NoError(t, err)

	ks, ok := p.(*KeyStore)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, ks.Aliases())

	_, err = p.PrivateKey("nobody", "")
	assert.ErrorIs(t, err, ErrUnknownAlias)
}
