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
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/encoding"
	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/password"
	"github.com/jeremyhahn/go-wssec/pkg/resource"
)

var (
	// ErrUnsupportedProvider is returned for crypto provider names other
	// than the built-in keystore.
	ErrUnsupportedProvider = errors.New("trust: unsupported crypto provider")

	// ErrNoKeystore is returned when properties name neither a keystore
	// nor a truststore.
	ErrNoKeystore = errors.New("trust: no keystore or truststore configured")
)

// supportedProvider reports whether name selects the built-in keystore.
func supportedProvider(name string) bool {
	switch strings.ToLower(name) {
	case "", "merlin",
		"org.apache.wss4j.common.crypto.merlin",
		"org.apache.ws.security.components.crypto.merlin":
		return true
	}
	return false
}

// Factory builds providers.
type Factory struct {
	locator resource.Locator
	logger  *logging.Logger
}

// NewFactory creates a factory. Keystore files are loaded through the
// loader carried by the context, falling back to locator. A nil locator
// resolves names against the working directory.
func NewFactory(locator resource.Locator, logger *logging.Logger) *Factory {
	if locator == nil {
		locator = resource.NewWorkingDirLocator()
	}
	return &Factory{
		locator: locator,
		logger:  logging.OrDefault(logger),
	}
}

// Locator returns the fallback locator.
func (f *Factory) Locator() resource.Locator {
	return f.locator
}

// New builds a KeyStore from props. Password values in ENC(...) form are
// decrypted with enc.
func (f *Factory) New(ctx context.Context, props Properties, enc password.Encryptor) (Provider, error) {
	if !supportedProvider(props.Get(PropProvider)) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, props.Get(PropProvider))
	}

	keystoreFile := props.Get(PropKeystoreFile)
	truststoreFile := props.Get(PropTruststoreFile)
	if keystoreFile == "" && truststoreFile == "" {
		return nil, ErrNoKeystore
	}

	loader := resource.LoaderFrom(ctx, f.locator)
	name := keystoreFile
	if name == "" {
		name = truststoreFile
	}
	ks := newKeyStore(name)

	if keystoreFile != "" {
		storePassword, err := password.Reveal(ctx, enc, props.Get(PropKeystorePassword))
		if err != nil {
			return nil, fmt.Errorf("trust: keystore password: %w", err)
		}
		privatePassword := storePassword
		if raw := props.Get(PropKeystorePrivatePassword); raw != "" {
			if privatePassword, err = password.Reveal(ctx, enc, raw); err != nil {
				return nil, fmt.Errorf("trust: private key password: %w", err)
			}
		}
		ks.privatePassword = privatePassword

		data, err := loader.Load(ctx, keystoreFile)
		if err != nil {
			return nil, fmt.Errorf("trust: load keystore %s: %w", keystoreFile, err)
		}
		alias := props.Get(PropKeystoreAlias)
		typ := storeType(props.Get(PropKeystoreType), keystoreFile)
		if err := ks.loadKeystore(typ, data, storePassword, alias); err != nil {
			return nil, fmt.Errorf("trust: keystore %s: %w", keystoreFile, err)
		}
	}

	if truststoreFile != "" {
		trustPassword, err := password.Reveal(ctx, enc, props.Get(PropTruststorePassword))
		if err != nil {
			return nil, fmt.Errorf("trust: truststore password: %w", err)
		}
		data, err := loader.Load(ctx, truststoreFile)
		if err != nil {
			return nil, fmt.Errorf("trust: load truststore %s: %w", truststoreFile, err)
		}
		typ := storeType(props.Get(PropTruststoreType), truststoreFile)
		if err := ks.loadTruststore(typ, data, trustPassword); err != nil {
			return nil, fmt.Errorf("trust: truststore %s: %w", truststoreFile, err)
		}
	}

	f.logger.Debug("built keystore provider",
		"name", ks.name,
		"alias", ks.defaultAlias,
		"trusted", len(ks.trusted))
	return ks, nil
}

// NewFromName opens name itself as a keystore without a password. It is
// the last resort when a properties file cannot be found.
func (f *Factory) NewFromName(ctx context.Context, name string) (Provider, error) {
	data, err := resource.LoaderFrom(ctx, f.locator).Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("trust: open %s: %w", name, err)
	}
	ks := newKeyStore(name)
	if err := ks.loadKeystore(storeType("", name), data, "", ""); err != nil {
		return nil, fmt.Errorf("trust: keystore %s: %w", name, err)
	}
	return ks, nil
}

func (ks *KeyStore) loadKeystore(typ string, data []byte, storePassword, alias string) error {
	e := &entry{}
	switch typ {
	case TypePKCS12:
		key, chain, err := encoding.DecodePKCS12(data, storePassword)
		if err != nil {
			return err
		}
		e.key = key
		e.chain = chain
	case TypePEM:
		bundle, err := encoding.DecodeBundle(data)
		if err != nil {
			return err
		}
		e.bundle = bundle
		e.chain = bundle.Certificates
	default:
		return fmt.Errorf("%w: %s", encoding.ErrUnsupportedFormat, typ)
	}

	if alias == "" {
		alias = defaultAliasFor(e.chain)
	}
	ks.defaultAlias = strings.ToLower(alias)
	ks.addEntry(alias, e)
	return nil
}

func (ks *KeyStore) loadTruststore(typ string, data []byte, storePassword string) error {
	switch typ {
	case TypePKCS12:
		certs, err := encoding.DecodePKCS12TrustStore(data, storePassword)
		if err != nil {
			return err
		}
		ks.addTrusted(certs...)
	case TypePEM:
		certs, err := encoding.DecodeCertificateChainPEM(data)
		if err != nil {
			return err
		}
		ks.addTrusted(certs...)
	default:
		return fmt.Errorf("%w: %s", encoding.ErrUnsupportedFormat, typ)
	}
	return nil
}

// storeType returns the configured type, or infers it from the file
// extension.
func storeType(configured, file string) string {
	switch strings.ToLower(configured) {
	case "pkcs12", "p12", "pfx":
		return TypePKCS12
	case "pem":
		return TypePEM
	case "":
	default:
		return strings.ToLower(configured)
	}
	switch strings.ToLower(path.Ext(file)) {
	case ".p12", ".pfx":
		return TypePKCS12
	default:
		return TypePEM
	}
}
