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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/health"
	"github.com/jeremyhahn/go-wssec/pkg/policy"
	"github.com/jeremyhahn/go-wssec/pkg/wss"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSecurityProperties prints a resolved security configuration
func (p *Printer) PrintSecurityProperties(v wss.View) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(v)
	case OutputFormatText:
		fmt.Fprintln(p.writer, "Security Configuration:")
		fmt.Fprintf(p.writer, "  Actions:                  %s\n", orNone(strings.Join(v.Actions, " ")))
		fmt.Fprintf(p.writer, "  User:                     %s\n", orNone(v.User))
		fmt.Fprintf(p.writer, "  Signature User:           %s\n", orNone(v.SignatureUser))
		fmt.Fprintf(p.writer, "  Encryption User:          %s\n", orNone(v.EncryptionUser))
		fmt.Fprintf(p.writer, "  Actor:                    %s\n", orNone(v.Actor))
		fmt.Fprintf(p.writer, "  BSP Compliant:            %t\n", v.BSPCompliant)
		fmt.Fprintf(p.writer, "  Must Understand:          %t\n", v.MustUnderstand)
		fmt.Fprintf(p.writer, "  Schema Validation:        %t\n", v.SchemaValidation)
		fmt.Fprintf(p.writer, "  Validate SAML Subject:    %t\n", v.ValidateSAMLSubjectConfirmation)
		fmt.Fprintf(p.writer, "  Timestamp TTL:            %ds (future %ds)\n", v.TimestampTTL, v.TimestampFutureTTL)
		fmt.Fprintf(p.writer, "  UsernameToken TTL:        %ds (future %ds)\n", v.UsernameTokenTTL, v.UsernameTokenFutureTTL)
		fmt.Fprintf(p.writer, "  Subject Cert Constraints: %s\n", orNone(strings.Join(v.SubjectCertConstraints, ", ")))
		fmt.Fprintf(p.writer, "  Callback Handler:         %s\n", orNone(v.CallbackHandler))
		fmt.Fprintf(p.writer, "  Password Encryptor:       %s\n", orNone(v.PasswordEncryptor))
		fmt.Fprintf(p.writer, "  Signature Crypto:         %s\n", orNone(v.SignatureCrypto))
		fmt.Fprintf(p.writer, "  Encryption Crypto:        %s\n", orNone(v.EncryptionCrypto))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintAssertion prints the result of a policy assertion lookup. found is
// nil when no assertion matched.
func (p *Printer) PrintAssertion(local string, found *policy.AssertionInfo, all []policy.QName) error {
	names := make([]string, len(all))
	for i, n := range all {
		names[i] = n.String()
	}
	switch p.format {
	case OutputFormatJSON:
		data := map[string]interface{}{
			"name":       local,
			"found":      found != nil,
			"assertions": names,
		}
		if found != nil {
			data["namespace"] = found.Name.Space
			if len(found.Attrs) > 0 {
				data["attributes"] = found.Attrs
			}
		}
		return p.printJSON(data)
	case OutputFormatText:
		if found == nil {
			fmt.Fprintf(p.writer, "Assertion %s: not found\n", local)
		} else {
			fmt.Fprintf(p.writer, "Assertion %s: %s\n", local, found.Name)
		}
		fmt.Fprintln(p.writer, "Assertions in document:")
		for _, n := range names {
			fmt.Fprintf(p.writer, "  - %s\n", n)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintReport prints the results of a configuration check
func (p *Printer) PrintReport(r health.Report) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Status: %s\n", r.Status)
		for _, c := range r.Checks {
			fmt.Fprintf(p.writer, "  %-18s %-10s %s\n", c.Name, c.Status, c.Message)
			if c.Error != "" {
				fmt.Fprintf(p.writer, "  %-18s %-10s %s\n", "", "", c.Error)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPassword prints an encrypted or decrypted password
func (p *Printer) PrintPassword(field, value string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			field: value,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, value)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"error": err.Error(),
		})
	default:
		_, werr := fmt.Fprintf(p.writer, "Error: %v\n", err)
		return werr
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
