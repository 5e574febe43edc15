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
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

// ParseOptions derives a configuration from static interceptor options.
// Class-name callbacks are instantiated through registry; nil selects the
// default registry. Unknown actions, malformed numbers and unusable
// callbacks are configuration errors.
func ParseOptions(options message.Bag, registry *callback.Registry) (*SecurityProperties, error) {
	if registry == nil {
		registry = callback.DefaultRegistry
	}
	p := NewSecurityProperties()
	if options == nil {
		return p, nil
	}

	if err := parseActions(options, p); err != nil {
		return nil, wsserr.Configuration("wss.ParseOptions", err)
	}
	parseUsers(options, p)
	if err := parseCallback(options, registry, p); err != nil {
		return nil, wsserr.Configuration("wss.ParseOptions", err)
	}
	if err := parseBooleanOptions(options, p); err != nil {
		return nil, wsserr.Configuration("wss.ParseOptions", err)
	}
	if err := parseNonBooleanOptions(options, p); err != nil {
		return nil, wsserr.Configuration("wss.ParseOptions", err)
	}
	return p, nil
}

func parseActions(options message.Bag, p *SecurityProperties) error {
	v, ok := options.Get(keys.Action)
	if !ok || v == nil {
		return nil
	}
	var names []string
	switch t := v.(type) {
	case string:
		names = strings.Fields(t)
	case []string:
		names = t
	case []any:
		for _, n := range t {
			s, ok := n.(string)
			if !ok {
				return fmt.Errorf("%s: unexpected element type %T", keys.Action, n)
			}
			names = append(names, s)
		}
	default:
		return fmt.Errorf("%s: unexpected type %T", keys.Action, v)
	}
	for _, name := range names {
		a, err := ParseAction(name)
		if err != nil {
			return err
		}
		if a == ActionNoSecurity {
			p.Actions = nil
			return nil
		}
		if !p.HasAction(a) {
			p.Actions = append(p.Actions, a)
		}
	}
	return nil
}

func parseUsers(options message.Bag, p *SecurityProperties) {
	if s, ok := message.String(options, keys.User); ok {
		p.User = s
	}
	if s, ok := message.String(options, keys.SignatureUser); ok {
		p.SignatureUser = s
	} else {
		p.SignatureUser = p.User
	}
	if s, ok := message.String(options, keys.EncryptionUser); ok {
		p.EncryptionUser = s
	}
}

func parseCallback(options message.Bag, registry *callback.Registry, p *SecurityProperties) error {
	if v, ok := options.Get(keys.PasswordCallbackRef); ok && v != nil {
		h, isHandler := v.(callback.Handler)
		if !isHandler {
			return fmt.Errorf("%s: %T is not a callback handler", keys.PasswordCallbackRef, v)
		}
		p.CallbackHandler = h
		return nil
	}
	name, ok := message.String(options, keys.PasswordCallbackClass)
	if !ok || strings.TrimSpace(name) == "" {
		return nil
	}
	h, err := registry.New(strings.TrimSpace(name))
	if err != nil {
		return err
	}
	p.CallbackHandler = h
	return nil
}

func parseBooleanOptions(options message.Bag, p *SecurityProperties) error {
	for _, o := range []struct {
		key string
		set func(bool)
	}{
		{keys.OptionMustUnderstand, func(v bool) { p.MustUnderstand = v }},
		{keys.OptionBSPCompliant, func(v bool) { p.BSPCompliant = v }},
	} {
		v, ok := options.Get(o.key)
		if !ok || v == nil {
			continue
		}
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		o.set(b)
	}
	return nil
}

func parseNonBooleanOptions(options message.Bag, p *SecurityProperties) error {
	if v, ok := options.Get(keys.OptionActor); ok && v != nil {
		s, err := parseString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", keys.OptionActor, err)
		}
		p.Actor = s
	}
	for _, o := range []struct {
		key string
		set func(int)
	}{
		{keys.OptionTTL, func(v int) { p.TimestampTTL = v }},
		{keys.OptionFutureTTL, func(v int) { p.TimestampFutureTTL = v }},
		{keys.OptionUTTTL, func(v int) { p.UsernameTokenTTL = v }},
		{keys.OptionUTFutureTTL, func(v int) { p.UsernameTokenFutureTTL = v }},
	} {
		v, ok := options.Get(o.key)
		if !ok || v == nil {
			continue
		}
		n, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		o.set(n)
	}
	return nil
}
