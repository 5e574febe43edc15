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

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Writer: &buf})

	l.Infof("crypto %s loaded", "sig")
	l.Debugf("cache size %d", 2)
	l.Warn("unusable override", "key", "security.callback-handler")
	l.Error(errors.New("bad pattern"))

	out := buf.String()
	assert.Contains(t, out, "crypto sig loaded")
	assert.Contains(t, out, "cache size 2")
	assert.Contains(t, out, "key=security.callback-handler")
	assert.Contains(t, out, "bad pattern")
}

func TestLogger_DebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Writer: &buf})
	l.Debugf("hidden %d", 1)
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestLogger_JSONWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Writer: &buf}).With("exchange_id", "abc")
	l.Info("built")
	assert.Contains(t, buf.String(), `"exchange_id":"abc"`)
	assert.Contains(t, buf.String(), `"msg":"built"`)
}

func TestOrDefault(t *testing.T) {
	assert.NotNil(t, OrDefault(nil))
	l := NewLogger(true)
	assert.Same(t, l, OrDefault(l))
}

func TestMaybeError_Nil(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Writer: &buf})
	l.MaybeError(nil)
	assert.Empty(t, buf.String())
}
