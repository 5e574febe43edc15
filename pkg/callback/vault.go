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
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/jeremyhahn/go-wssec/pkg/correlation"
)

// VaultHandlerName is the registry name of the Vault handler.
const VaultHandlerName = "vault"

// Environment variables read by NewVaultHandlerFromEnv.
const (
	EnvVaultAddress   = "VAULT_ADDR"
	EnvVaultToken     = "VAULT_TOKEN"
	EnvVaultNamespace = "VAULT_NAMESPACE"
	EnvVaultPath      = "WSSEC_VAULT_SECRET_PATH"
)

var (
	// ErrVaultConnection is returned when the Vault client cannot be created.
	ErrVaultConnection = errors.New("callback: failed to connect to vault")

	// ErrSecretNotFound is returned when the secret path holds no data.
	ErrSecretNotFound = errors.New("callback: vault secret not found")

	// ErrInvalidConfig is returned for an incomplete or unusable VaultConfig.
	ErrInvalidConfig = errors.New("callback: invalid vault configuration")
)

// VaultConfig configures a VaultHandler.
type VaultConfig struct {
	// Address is the Vault server address (e.g., "http://127.0.0.1:8200")
	Address string

	// Token is the Vault authentication token
	Token string

	// Namespace is the Vault namespace (Enterprise feature, optional)
	Namespace string

	// SecretPath is the logical path of the secret holding the passwords,
	// e.g. "secret/data/wssec" for a KV v2 mount.
	SecretPath string

	// DefaultField is read when the secret has no field named after the
	// callback identifier. Defaults to "password".
	DefaultField string

	// MaxRetries overrides the client retry count when non-negative.
	MaxRetries int

	// TLSConfig replaces the client TLS settings when set.
	TLSConfig *tls.Config
}

// Validate checks the configuration.
func (c *VaultConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if c.SecretPath == "" {
		return fmt.Errorf("%w: secret path is required", ErrInvalidConfig)
	}
	return nil
}

// VaultHandler answers password callbacks from the fields of a Vault
// secret. The field named after the callback identifier is used, falling
// back to DefaultField.
type VaultHandler struct {
	config *VaultConfig
	client *vault.Client
}

// NewVaultHandler creates a handler for the given configuration.
func NewVaultHandler(config *VaultConfig) (*VaultHandler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.DefaultField == "" {
		config.DefaultField = "password"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	if config.MaxRetries >= 0 {
		vaultConfig.MaxRetries = config.MaxRetries
	}
	if config.TLSConfig != nil {
		transport, ok := vaultConfig.HttpClient.Transport.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported transport %T", ErrInvalidConfig, vaultConfig.HttpClient.Transport)
		}
		transport.TLSClientConfig = config.TLSConfig.Clone()
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultConnection, err)
	}
	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	return &VaultHandler{config: config, client: client}, nil
}

// NewVaultHandlerFromEnv creates a handler from the standard Vault
// environment variables. It is the factory registered as "vault".
func NewVaultHandlerFromEnv() (Handler, error) {
	return NewVaultHandler(&VaultConfig{
		Address:    os.Getenv(EnvVaultAddress),
		Token:      os.Getenv(EnvVaultToken),
		Namespace:  os.Getenv(EnvVaultNamespace),
		SecretPath: os.Getenv(EnvVaultPath),
		MaxRetries: -1,
	})
}

// Handle implements Handler. The secret is read once per call.
func (h *VaultHandler) Handle(ctx context.Context, callbacks ...Callback) error {
	var fields map[string]interface{}
	for _, cb := range callbacks {
		pc, ok := cb.(*PasswordCallback)
		if !ok {
			continue
		}
		if fields == nil {
			var err error
			if fields, err = h.read(ctx); err != nil {
				return err
			}
		}
		if v, ok := fields[pc.Identifier].(string); ok && pc.Identifier != "" {
			pc.Password = v
			continue
		}
		if v, ok := fields[h.config.DefaultField].(string); ok {
			pc.Password = v
		}
	}
	return nil
}

// read fetches the secret fields. Errors name the exchange carried by ctx,
// if any.
func (h *VaultHandler) read(ctx context.Context) (map[string]interface{}, error) {
	path := strings.TrimPrefix(h.config.SecretPath, "/")
	label := path
	if id := correlation.ExchangeID(ctx); id != "" {
		label = fmt.Sprintf("%s (exchange %s)", path, id)
	}
	secret, err := h.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("callback: read %s: %w", label, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, label)
	}
	// KV v2 nests the fields under "data".
	if inner, ok := secret.Data["data"].(map[string]interface{}); ok {
		return inner, nil
	}
	return secret.Data, nil
}

func init() {
	Register(VaultHandlerName, NewVaultHandlerFromEnv)
}

var _ Handler = (*VaultHandler)(nil)
