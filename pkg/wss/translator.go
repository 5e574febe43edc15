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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/constraint"
	"github.com/jeremyhahn/go-wssec/pkg/keys"
	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

// errNoOverride tells the translator to leave the field untouched.
var errNoOverride = errors.New("wss: no override")

type errorPolicy int

const (
	// policyFatal aborts the exchange with a configuration error.
	policyFatal errorPolicy = iota
	// policyIgnore logs the value and leaves the field untouched.
	policyIgnore
)

// override binds one context key to a field of SecurityProperties.
type override struct {
	key    string
	policy errorPolicy
	def    any
	apply  func(p *SecurityProperties, v any) error
}

func field[T any](key string, policy errorPolicy, parse func(any) (T, error), set func(*SecurityProperties, T)) override {
	return override{
		key:    key,
		policy: policy,
		apply: func(p *SecurityProperties, v any) error {
			parsed, err := parse(v)
			if err != nil {
				return err
			}
			set(p, parsed)
			return nil
		},
	}
}

func (o override) withDefault(v any) override {
	o.def = v
	return o
}

// Translator copies per-exchange overrides into a SecurityProperties.
type Translator struct {
	logger    *logging.Logger
	compiler  *constraint.Compiler
	overrides []override
}

// NewTranslator returns a translator for the recognized override keys. A
// nil logger selects the default logger.
func NewTranslator(logger *logging.Logger) *Translator {
	t := &Translator{
		logger:   logging.OrDefault(logger),
		compiler: constraint.NewCompiler(logger),
	}
	t.overrides = []override{
		field(keys.BSPCompliant, policyIgnore, parseBool,
			func(p *SecurityProperties, v bool) { p.BSPCompliant = v }),
		field(keys.TimestampFutureTTL, policyFatal, parseInt,
			func(p *SecurityProperties, v int) { p.TimestampFutureTTL = v }),
		field(keys.TimestampTTL, policyFatal, parseInt,
			func(p *SecurityProperties, v int) { p.TimestampTTL = v }),
		field(keys.UsernameTokenFutureTTL, policyFatal, parseInt,
			func(p *SecurityProperties, v int) { p.UsernameTokenFutureTTL = v }),
		field(keys.UsernameTokenTTL, policyFatal, parseInt,
			func(p *SecurityProperties, v int) { p.UsernameTokenTTL = v }),
		field(keys.SubjectCertConstraints, policyIgnore, t.parseConstraints,
			func(p *SecurityProperties, v constraint.Set) { p.SubjectCertConstraints = v }),
		field(keys.ValidateSAMLSubjectConfirmation, policyIgnore, parseBool,
			func(p *SecurityProperties, v bool) { p.ValidateSAMLSubjectConfirmation = v }),
		field(keys.Actor, policyIgnore, parseString,
			func(p *SecurityProperties, v string) { p.Actor = v }),
		field(keys.MustUnderstand, policyIgnore, parseBool,
			func(p *SecurityProperties, v bool) { p.MustUnderstand = v }).withDefault(true),
		field(keys.SchemaValidationEnabled, policyIgnore, parseBool,
			func(p *SecurityProperties, v bool) { p.SchemaValidation = v }).withDefault(false),
	}
	return t
}

// Keys returns the recognized override keys in application order.
func (t *Translator) Keys() []string {
	out := make([]string, len(t.overrides))
	for i, o := range t.overrides {
		out[i] = o.key
	}
	return out
}

// Apply overwrites the fields of p whose override key is present in ex.
// Must-understand and schema validation are always written, falling back to
// true and false. A malformed number is a configuration error; other
// unusable values are logged and skipped.
func (t *Translator) Apply(ex *message.Exchange, p *SecurityProperties) error {
	if p.Sealed() {
		return wsserr.Configuration("wss.Apply", ErrSealed)
	}
	for _, o := range t.overrides {
		v, ok := ex.Contextual(o.key)
		if !ok {
			if o.def == nil {
				continue
			}
			v = o.def
		}
		err := o.apply(p, v)
		switch {
		case err == nil, errors.Is(err, errNoOverride):
		case o.policy == policyFatal:
			return wsserr.Configuration("wss.Apply", fmt.Errorf("%s: %w", o.key, err))
		default:
			t.logger.Warn("ignoring unusable security override",
				"key", o.key,
				"error", err,
				"exchange_id", ex.ID())
		}
	}
	return nil
}

func (t *Translator) parseConstraints(v any) (constraint.Set, error) {
	raw, err := parseString(v)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errNoOverride
	}
	return t.compiler.Compile(raw), nil
}

func parseInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q: %w", n, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("unexpected type %T for integer value", v)
}

func parseBool(v any) (bool, error) {
	switch v.(type) {
	case bool, string:
		return message.IsTrue(v), nil
	}
	return false, fmt.Errorf("unexpected type %T for boolean value", v)
}

func parseString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("unexpected type %T for string value", v)
}
