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

// Package keys lists the property keys recognized in exchange context and
// in the static interceptor options.
package keys

// Exchange context overrides.
const (
	BSPCompliant                    = "security.is-bsp-compliant"
	TimestampFutureTTL              = "security.timestamp.futureTimeToLive"
	TimestampTTL                    = "security.timestamp.timeToLive"
	UsernameTokenFutureTTL          = "security.usernametoken.futureTimeToLive"
	UsernameTokenTTL                = "security.usernametoken.timeToLive"
	SubjectCertConstraints          = "security.subject.cert.constraints"
	ValidateSAMLSubjectConfirmation = "security.validate.saml.subject.conf"
	Actor                           = "security.actor"
	MustUnderstand                  = "security.must-understand"
	SchemaValidationEnabled         = "schema-validation-enabled"
	CallbackHandler                 = "security.callback-handler"
	Password                        = "password"
	PasswordEncryptorInstance       = "security.password.encryptor.instance"
	SignatureCrypto                 = "security.signature.crypto"
	EncryptionCrypto                = "security.encryption.crypto"
)

// Static interceptor options.
const (
	Action                = "action"
	User                  = "user"
	SignatureUser         = "signatureUser"
	EncryptionUser        = "encryptionUser"
	PasswordCallbackClass = "passwordCallbackClass"
	PasswordCallbackRef   = "passwordCallbackRef"
	SignaturePropFile     = "signaturePropFile"
	SignaturePropRefID    = "signaturePropRefId"
	EncryptionPropFile    = "encryptionPropFile"
	EncryptionPropRefID   = "encryptionPropRefId"
	OptionMustUnderstand  = "mustUnderstand"
	OptionBSPCompliant    = "isBSPCompliant"
	OptionActor           = "actor"
	OptionTTL             = "timeToLive"
	OptionFutureTTL       = "futureTimeToLive"
	OptionUTTTL           = "utTimeToLive"
	OptionUTFutureTTL     = "utFutureTimeToLive"
)
