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

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig configures the client side of the connection to Vault
type TLSConfig struct {
	CAFile             string   `yaml:"ca_file"`
	CAFiles            []string `yaml:"ca_files"`
	CertFile           string   `yaml:"cert_file"`
	KeyFile            string   `yaml:"key_file"`
	ServerName         string   `yaml:"server_name"`
	MinVersion         string   `yaml:"min_version"`
	MaxVersion         string   `yaml:"max_version"`
	CipherSuites       []string `yaml:"cipher_suites"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// Validate checks the TLS settings without reading any files
func (cfg *TLSConfig) Validate() error {
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return fmt.Errorf("tls cert_file and key_file must be set together")
	}
	if _, err := parseTLSVersion(cfg.MinVersion); err != nil {
		return err
	}
	if _, err := parseTLSVersion(cfg.MaxVersion); err != nil {
		return err
	}
	if _, err := parseCipherSuites(cfg.CipherSuites); err != nil {
		return err
	}
	return nil
}

// LoadTLSConfig builds a client tls.Config. The system roots are used
// unless CA files are given.
func (cfg *TLSConfig) LoadTLSConfig() (*tls.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	minVersion, _ := parseTLSVersion(cfg.MinVersion)
	// #nosec G402 - MinVersion defaults to TLS 1.2, InsecureSkipVerify is an explicit opt-in
	tlsConfig := &tls.Config{
		MinVersion:         minVersion,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.MaxVersion != "" {
		tlsConfig.MaxVersion, _ = parseTLSVersion(cfg.MaxVersion)
	}

	if len(cfg.CipherSuites) > 0 {
		tlsConfig.CipherSuites, _ = parseCipherSuites(cfg.CipherSuites)
	}

	// Client certificate for Vault's cert auth or mTLS listeners
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" || len(cfg.CAFiles) > 0 {
		pool, err := loadCertPool(cfg.CAFile, cfg.CAFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA certificates: %w", err)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// parseTLSVersion converts a string to a tls version constant. An empty
// string selects TLS 1.2.
func parseTLSVersion(version string) (uint16, error) {
	switch version {
	case "", "TLS1.2":
		return tls.VersionTLS12, nil
	case "TLS1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls version: %s (must be TLS1.2 or TLS1.3)", version)
	}
}

// parseCipherSuites converts cipher suite names to IDs
func parseCipherSuites(suites []string) ([]uint16, error) {
	// Map of cipher suite names to IDs
	cipherSuiteMap := map[string]uint16{
		// TLS 1.3
		"TLS_AES_128_GCM_SHA256":       tls.TLS_AES_128_GCM_SHA256,
		"TLS_AES_256_GCM_SHA384":       tls.TLS_AES_256_GCM_SHA384,
		"TLS_CHACHA20_POLY1305_SHA256": tls.TLS_CHACHA20_POLY1305_SHA256,

		// TLS 1.2
		"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	}

	result := make([]uint16, 0, len(suites))
	for _, name := range suites {
		id, ok := cipherSuiteMap[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite: %s", name)
		}
		result = append(result, id)
	}

	return result, nil
}

// loadCertPool loads CA certificates into a cert pool
func loadCertPool(caFile string, additionalCAs []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()

	files := additionalCAs
	if caFile != "" {
		files = append([]string{caFile}, additionalCAs...)
	}
	for _, caPath := range files {
		// #nosec G304 - CA file paths from trusted config
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", caPath, err)
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", caPath)
		}
	}

	return pool, nil
}
