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

// Package validation checks names that arrive through configuration
// before they reach a filesystem or a handler registry.
package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	// MaxResourceNameLength bounds resource locations.
	MaxResourceNameLength = 1024

	// MaxHandlerNameLength bounds callback handler names.
	MaxHandlerNameLength = 255

	maxLogLength = 1000
)

// handlerPattern matches dotted identifiers such as
// "org.example.PasswordCallback" or "vault".
var handlerPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$\-]*(\.[A-Za-z_$][A-Za-z0-9_$\-]*)*$`)

// ValidateResourceName validates a resource location such as
// "conf/signature.properties" or "classpath:keys/alice.p12".
// Rejects:
//   - empty names
//   - null bytes and control characters
//   - parent directory references
//   - names longer than MaxResourceNameLength
func ValidateResourceName(name string) error {
	if name == "" {
		return fmt.Errorf("resource name cannot be empty")
	}

	if strings.Contains(name, "\x00") {
		return fmt.Errorf("resource name contains null byte")
	}

	// Check length before scanning the rest
	if len(name) > MaxResourceNameLength {
		return fmt.Errorf("resource name too long (max %d characters)", MaxResourceNameLength)
	}

	if hasControl(name) {
		return fmt.Errorf("resource name contains control characters")
	}

	for _, seg := range strings.FieldsFunc(name, isSeparator) {
		if seg == ".." {
			return fmt.Errorf("resource name contains path traversal attempt")
		}
	}

	return nil
}

// CleanResourceName validates name and returns it as an absolute,
// slash separated path with any "classpath:" prefix removed.
func CleanResourceName(name string) (string, error) {
	if err := ValidateResourceName(name); err != nil {
		return "", err
	}
	return path.Clean("/" + strings.TrimPrefix(name, "classpath:")), nil
}

// ValidateHandlerName validates a callback handler name.
func ValidateHandlerName(name string) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}

	if len(name) > MaxHandlerNameLength {
		return fmt.Errorf("handler name too long (max %d characters)", MaxHandlerNameLength)
	}

	if hasControl(name) {
		return fmt.Errorf("handler name contains control characters")
	}

	if !handlerPattern.MatchString(name) {
		return fmt.Errorf("handler name contains invalid characters (allowed: a-z, A-Z, 0-9, _, $, -, .)")
	}

	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}

	return s
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
