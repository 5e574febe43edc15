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

package validation

import (
	"strings"
	"testing"
)

func TestValidateResourceName(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		wantErr  bool
	}{
		// Valid names
		{"relative", "conf/signature.properties", false},
		{"absolute", "/conf/signature.properties", false},
		{"classpath prefix", "classpath:keys/alice.p12", false},
		{"file url", "file:///etc/wssec/alice.properties", false},
		{"dots in file name", "keys/alice..p12", false},
		{"single char", "a", false},

		// Invalid names
		{"empty string", "", true},
		{"null byte", "conf\x00.properties", true},
		{"traversal prefix", "../secret.properties", true},
		{"traversal middle", "conf/../../etc/passwd", true},
		{"traversal windows", "conf\\..\\secret", true},
		{"traversal classpath", "classpath:../keys", true},
		{"newline", "conf/a\nb.properties", true},
		{"tab", "conf/a\tb", true},
		{"del character", "conf\x7f", true},
		{"too long", strings.Repeat("a", MaxResourceNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceName(tt.resource)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateResourceName(%q) error = %v, wantErr %v", tt.resource, err, tt.wantErr)
			}
		})
	}
}

func TestCleanResourceName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"conf/sig.properties", "/conf/sig.properties"},
		{"/conf/sig.properties", "/conf/sig.properties"},
		{"classpath:conf/sig.properties", "/conf/sig.properties"},
		{"conf/./sig.properties", "/conf/sig.properties"},
		{"conf//sig.properties", "/conf/sig.properties"},
	}

	for _, tt := range tests {
		got, err := CleanResourceName(tt.in)
		if err != nil {
			t.Fatalf("CleanResourceName(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("CleanResourceName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := CleanResourceName("../x"); err == nil {
		t.Error("CleanResourceName(\"../x\") expected error")
	}
}

func TestValidateHandlerName(t *testing.T) {
	tests := []struct {
		name    string
		handler string
		wantErr bool
	}{
		// Valid names
		{"simple", "vault", false},
		{"dotted", "org.example.PasswordCallback", false},
		{"inner class", "org.example.Outer$Inner", false},
		{"with dash", "static-password", false},
		{"with underscore", "my_handler", false},
		{"mixed case", "KeystorePasswordCallback", false},

		// Invalid names
		{"empty string", "", true},
		{"leading digit", "1handler", true},
		{"leading dot", ".handler", true},
		{"trailing dot", "handler.", true},
		{"double dot", "org..example", true},
		{"space", "my handler", true},
		{"slash", "org/example", true},
		{"semicolon", "handler;rm", true},
		{"newline", "handler\nname", true},
		{"null byte", "handler\x00", true},
		{"too long", strings.Repeat("a", MaxHandlerNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHandlerName(tt.handler)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHandlerName(%q) error = %v, wantErr %v", tt.handler, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal string", "conf/sig.properties", "conf/sig.properties"},
		{"newline injection", "ref\nlevel=ERROR msg=forged", "reflevel=ERROR msg=forged"},
		{"carriage return", "ref\rname", "refname"},
		{"null byte", "ref\x00name", "refname"},
		{"del", "ref\x7fname", "refname"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.input); got != tt.want {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeForLog_Truncates(t *testing.T) {
	got := SanitizeForLog(strings.Repeat("a", 2000))
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Errorf("expected truncation suffix, got %d chars", len(got))
	}
	if len(got) != maxLogLength+len("...[truncated]") {
		t.Errorf("unexpected length %d", len(got))
	}
}
