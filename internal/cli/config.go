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

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-wssec/internal/config"
	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/metrics"
	"github.com/jeremyhahn/go-wssec/pkg/resource"
	"github.com/jeremyhahn/go-wssec/pkg/trust"
	"github.com/jeremyhahn/go-wssec/pkg/wss"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the interceptor configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

func (c *Config) bind(v *viper.Viper) error {
	c.ConfigFile = v.GetString("config")
	c.OutputFormat = v.GetString("output")
	c.Verbose = v.GetBool("verbose")
	switch OutputFormat(c.OutputFormat) {
	case OutputFormatText, OutputFormatJSON:
		return nil
	}
	return fmt.Errorf("unknown output format: %s", c.OutputFormat)
}

// Load reads the interceptor configuration file. Without one, the defaults
// and WSSEC_ environment overrides are used.
func (c *Config) Load() (*config.Config, error) {
	if c.ConfigFile == "" {
		return config.Parse(nil)
	}
	return config.Load(c.ConfigFile)
}

// Runtime is an interceptor assembled from a configuration file.
type Runtime struct {
	Logger      *logging.Logger
	Interceptor *wss.Interceptor
	Endpoint    *message.Endpoint
	Resources   *resource.Manager
}

// NewRuntime wires logging, metrics, resource lookup, the callback
// registry and the crypto resolver into an interceptor. Log output goes to
// logOut.
func NewRuntime(c *config.Config, logOut io.Writer, verbose bool) (*Runtime, error) {
	level := c.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{
		Level:  level,
		Format: c.Logging.Format,
		Writer: logOut,
	})

	if c.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	locator := resource.NewWorkingDirLocator()
	if c.Resources.Dir != "" {
		locator = resource.NewDirLocator(c.Resources.Dir)
	}

	registry := callback.DefaultRegistry
	if c.Vault != nil {
		vc := &callback.VaultConfig{
			Address:      c.Vault.Address,
			Token:        c.Vault.Token,
			Namespace:    c.Vault.Namespace,
			SecretPath:   c.Vault.SecretPath,
			DefaultField: c.Vault.DefaultField,
			MaxRetries:   c.Vault.MaxRetries,
		}
		if err := vc.Validate(); err != nil {
			return nil, err
		}
		if c.Vault.TLS != nil {
			tc, err := c.Vault.TLS.LoadTLSConfig()
			if err != nil {
				return nil, err
			}
			vc.TLSConfig = tc
		}
		registry = callback.NewRegistry()
		registry.Register(callback.VaultHandlerName, func() (callback.Handler, error) {
			h, err := callback.NewVaultHandler(vc)
			if err != nil {
				return nil, err
			}
			return h, nil
		})
	}

	crypto := trust.NewResolver(
		trust.WithLocator(locator),
		trust.WithFactory(trust.NewFactory(locator, logger)),
		trust.WithLogger(logger),
		trust.WithMissLogLimit(c.Trust.MissLogInterval, c.Trust.MissLogBurst))

	interceptor := wss.New(
		wss.WithID(c.Interceptor.ID),
		wss.WithPhase(c.Interceptor.Phase),
		wss.WithOptions(c.Interceptor.Options),
		wss.WithLogger(logger),
		wss.WithRegistry(registry),
		wss.WithTrustResolver(crypto))
	interceptor.AddBefore(c.Interceptor.Before...)
	interceptor.AddAfter(c.Interceptor.After...)

	return &Runtime{
		Logger:      logger,
		Interceptor: interceptor,
		Endpoint:    message.NewEndpoint(c.Endpoint.Name, c.Endpoint.Properties),
		Resources:   resource.NewManager(locator),
	}, nil
}

// NewExchange creates an exchange on the runtime's endpoint carrying the
// given message properties.
func (r *Runtime) NewExchange(props map[string]any, requestor bool) *message.Exchange {
	opts := []message.Option{
		message.WithEndpoint(r.Endpoint),
		message.WithResources(r.Resources),
		message.WithMessageProperties(props),
	}
	if requestor {
		opts = append(opts, message.AsRequestor())
	}
	return message.NewExchange(opts...)
}
