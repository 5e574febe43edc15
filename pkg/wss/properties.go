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

// Package wss assembles the per-exchange WS-Security configuration.
//
// An Interceptor holds the static configuration of one endpoint. Build
// merges it with the overrides found in exchange context, resolves the
// password callback handler, the password encryptor and the signature and
// encryption trust providers, and returns a sealed SecurityProperties ready
// for the message security engine.
package wss

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/constraint"
	"github.com/jeremyhahn/go-wssec/pkg/password"
	"github.com/jeremyhahn/go-wssec/pkg/trust"
)

// ErrSealed is returned when a sealed configuration is modified.
var ErrSealed = errors.New("wss: security properties are sealed")

// Default freshness windows in seconds.
const (
	DefaultTimestampTTL           = 300
	DefaultTimestampFutureTTL     = 60
	DefaultUsernameTokenTTL       = 300
	DefaultUsernameTokenFutureTTL = 60
)

// Action is a security operation applied to outbound messages or expected
// on inbound ones.
type Action string

const (
	ActionUsernameToken          Action = "UsernameToken"
	ActionUsernameTokenSignature Action = "UsernameTokenSignature"
	ActionTimestamp              Action = "Timestamp"
	ActionSignature              Action = "Signature"
	ActionEncrypt                Action = "Encrypt"
	ActionSAMLTokenSigned        Action = "SAMLTokenSigned"
	ActionSAMLTokenUnsigned      Action = "SAMLTokenUnsigned"
	ActionSignatureDerived       Action = "SignatureDerived"
	ActionEncryptDerived         Action = "EncryptDerived"
	ActionSignatureConfirmation  Action = "SignatureConfirmation"
	ActionKerberosToken          Action = "KerberosToken"
	ActionCustomToken            Action = "CustomToken"
	ActionNoSecurity             Action = "NoSecurity"
)

var knownActions = map[string]Action{}

func init() {
	for _, a := range []Action{
		ActionUsernameToken, ActionUsernameTokenSignature, ActionTimestamp,
		ActionSignature, ActionEncrypt, ActionSAMLTokenSigned,
		ActionSAMLTokenUnsigned, ActionSignatureDerived, ActionEncryptDerived,
		ActionSignatureConfirmation, ActionKerberosToken, ActionCustomToken,
		ActionNoSecurity,
	} {
		knownActions[strings.ToLower(string(a))] = a
	}
	// Later spelling of the encryption action.
	knownActions["encryption"] = ActionEncrypt
}

// ParseAction maps an action name, in any case, to an Action.
func ParseAction(name string) (Action, error) {
	a, ok := knownActions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("wss: unknown action %q", name)
	}
	return a, nil
}

// SecurityProperties is the configuration of one message exchange. It is
// owned by the goroutine processing the exchange and must not be modified
// once sealed.
type SecurityProperties struct {
	Actions        []Action
	User           string
	SignatureUser  string
	EncryptionUser string
	Actor          string

	BSPCompliant                    bool
	MustUnderstand                  bool
	SchemaValidation                bool
	ValidateSAMLSubjectConfirmation bool

	TimestampTTL           int
	TimestampFutureTTL     int
	UsernameTokenTTL       int
	UsernameTokenFutureTTL int

	// SubjectCertConstraints are evaluated in order; matching any one of
	// them is sufficient.
	SubjectCertConstraints constraint.Set

	CallbackHandler   callback.Handler
	PasswordEncryptor password.Encryptor
	SignatureCrypto   trust.Provider
	EncryptionCrypto  trust.Provider

	sealed bool
}

// NewSecurityProperties returns a configuration holding the defaults.
func NewSecurityProperties() *SecurityProperties {
	return &SecurityProperties{
		BSPCompliant:                    true,
		MustUnderstand:                  true,
		ValidateSAMLSubjectConfirmation: true,
		TimestampTTL:                    DefaultTimestampTTL,
		TimestampFutureTTL:              DefaultTimestampFutureTTL,
		UsernameTokenTTL:                DefaultUsernameTokenTTL,
		UsernameTokenFutureTTL:          DefaultUsernameTokenFutureTTL,
	}
}

// Clone returns an unsealed deep copy. Handlers and providers are shared.
func (p *SecurityProperties) Clone() *SecurityProperties {
	c := *p
	c.sealed = false
	if p.Actions != nil {
		c.Actions = append([]Action(nil), p.Actions...)
	}
	if p.SubjectCertConstraints != nil {
		c.SubjectCertConstraints = append(constraint.Set(nil), p.SubjectCertConstraints...)
	}
	return &c
}

// Seal marks the configuration read-only.
func (p *SecurityProperties) Seal() {
	p.sealed = true
}

// Sealed reports whether Seal was called.
func (p *SecurityProperties) Sealed() bool {
	return p.sealed
}

// HasAction reports whether a is configured.
func (p *SecurityProperties) HasAction(a Action) bool {
	for _, have := range p.Actions {
		if have == a {
			return true
		}
	}
	return false
}

// AddAction appends a unless it is already configured.
func (p *SecurityProperties) AddAction(a Action) error {
	if p.sealed {
		return ErrSealed
	}
	if !p.HasAction(a) {
		p.Actions = append(p.Actions, a)
	}
	return nil
}

// View is a printable summary of a configuration.
type View struct {
	Actions                         []string `json:"actions"`
	User                            string   `json:"user,omitempty"`
	SignatureUser                   string   `json:"signature_user,omitempty"`
	EncryptionUser                  string   `json:"encryption_user,omitempty"`
	Actor                           string   `json:"actor,omitempty"`
	BSPCompliant                    bool     `json:"bsp_compliant"`
	MustUnderstand                  bool     `json:"must_understand"`
	SchemaValidation                bool     `json:"schema_validation"`
	ValidateSAMLSubjectConfirmation bool     `json:"validate_saml_subject_confirmation"`
	TimestampTTL                    int      `json:"timestamp_ttl"`
	TimestampFutureTTL              int      `json:"timestamp_future_ttl"`
	UsernameTokenTTL                int      `json:"username_token_ttl"`
	UsernameTokenFutureTTL          int      `json:"username_token_future_ttl"`
	SubjectCertConstraints          []string `json:"subject_cert_constraints,omitempty"`
	CallbackHandler                 string   `json:"callback_handler,omitempty"`
	PasswordEncryptor               string   `json:"password_encryptor,omitempty"`
	SignatureCrypto                 string   `json:"signature_crypto,omitempty"`
	EncryptionCrypto                string   `json:"encryption_crypto,omitempty"`
}

// View summarizes the configuration. Secrets are not included.
func (p *SecurityProperties) View() View {
	v := View{
		Actions:                         make([]string, 0, len(p.Actions)),
		User:                            p.User,
		SignatureUser:                   p.SignatureUser,
		EncryptionUser:                  p.EncryptionUser,
		Actor:                           p.Actor,
		BSPCompliant:                    p.BSPCompliant,
		MustUnderstand:                  p.MustUnderstand,
		SchemaValidation:                p.SchemaValidation,
		ValidateSAMLSubjectConfirmation: p.ValidateSAMLSubjectConfirmation,
		TimestampTTL:                    p.TimestampTTL,
		TimestampFutureTTL:              p.TimestampFutureTTL,
		UsernameTokenTTL:                p.UsernameTokenTTL,
		UsernameTokenFutureTTL:          p.UsernameTokenFutureTTL,
		SubjectCertConstraints:          p.SubjectCertConstraints.Strings(),
	}
	for _, a := range p.Actions {
		v.Actions = append(v.Actions, string(a))
	}
	if p.CallbackHandler != nil {
		v.CallbackHandler = fmt.Sprintf("%T", p.CallbackHandler)
	}
	if p.PasswordEncryptor != nil {
		v.PasswordEncryptor = fmt.Sprintf("%T", p.PasswordEncryptor)
	}
	if p.SignatureCrypto != nil {
		v.SignatureCrypto = p.SignatureCrypto.Name()
	}
	if p.EncryptionCrypto != nil {
		v.EncryptionCrypto = p.EncryptionCrypto.Name()
	}
	return v
}
