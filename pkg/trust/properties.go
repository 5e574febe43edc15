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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/magiconair/properties"

	"github.com/jeremyhahn/go-wssec/pkg/resource"
)

// Crypto property keys.
const (
	PropProvider                = "org.apache.wss4j.crypto.provider"
	PropKeystoreFile            = "org.apache.wss4j.crypto.merlin.keystore.file"
	PropKeystoreType            = "org.apache.wss4j.crypto.merlin.keystore.type"
	PropKeystorePassword        = "org.apache.wss4j.crypto.merlin.keystore.password"
	PropKeystoreAlias           = "org.apache.wss4j.crypto.merlin.keystore.alias"
	PropKeystorePrivatePassword = "org.apache.wss4j.crypto.merlin.keystore.private.password"
	PropTruststoreFile          = "org.apache.wss4j.crypto.merlin.truststore.file"
	PropTruststoreType          = "org.apache.wss4j.crypto.merlin.truststore.type"
	PropTruststorePassword      = "org.apache.wss4j.crypto.merlin.truststore.password"

	currentPrefix = "org.apache.wss4j.crypto."
	legacyPrefix  = "org.apache.ws.security.crypto."
)

// Properties is a flat crypto configuration.
type Properties map[string]string

// Get returns the trimmed value of key. Keys under the current prefix are
// also looked up under the legacy org.apache.ws.security.crypto prefix.
func (p Properties) Get(key string) string {
	v, ok := p[key]
	if !ok && strings.HasPrefix(key, currentPrefix) {
		v = p[legacyPrefix+strings.TrimPrefix(key, currentPrefix)]
	}
	return strings.TrimSpace(v)
}

// Keys returns the property names, sorted.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fingerprint digests the sorted entries. Equal bags share a fingerprint.
func (p Properties) fingerprint() string {
	h := sha256.New()
	for _, k := range p.Keys() {
		fmt.Fprintf(h, "%d:%s=%d:%s\n", len(k), k, len(p[k]), p[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ParseProperties parses the content of a .properties file. Parse failures
// wrap resource.ErrMalformed.
func ParseProperties(data []byte) (Properties, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	parsed, err := l.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", resource.ErrMalformed, err)
	}
	return Properties(parsed.Map()), nil
}

// AsProperties converts the property bag shapes accepted in exchange
// context. ok is false for anything else.
func AsProperties(v any) (Properties, bool) {
	switch t := v.(type) {
	case Properties:
		return t, true
	case map[string]string:
		return Properties(t), true
	case *properties.Properties:
		if t == nil {
			return nil, false
		}
		return Properties(t.Map()), true
	case map[string]any:
		out := make(Properties, len(t))
		for k, val := range t {
			out[k] = fmt.Sprint(val)
		}
		return out, true
	default:
		return nil, false
	}
}
