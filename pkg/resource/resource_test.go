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

package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memLocator(t *testing.T, files map[string]string) *FSLocator {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0600))
	}
	return NewFSLocator(fs)
}

func TestFSLocator_Load(t *testing.T) {
	l := memLocator(t, map[string]string{"/conf/sig.properties": "a=b"})

	tests := []struct {
		name string
		want string
		err  error
	}{
		{"conf/sig.properties", "a=b", nil},
		{"/conf/sig.properties", "a=b", nil},
		{"classpath:conf/sig.properties", "a=b", nil},
		{"conf/missing.properties", "", ErrNotFound},
		{"", "", ErrNotFound},
		{"../conf/sig.properties", "", ErrNotFound},
		{"conf/\nsig.properties", "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := l.Load(context.Background(), tt.name)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestURLLocator_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/wssec/enc.properties", []byte("x=y"), 0600))
	l := NewURLLocator(fs)

	data, err := l.Load(context.Background(), "file:///etc/wssec/enc.properties")
	require.NoError(t, err)
	assert.Equal(t, "x=y", string(data))

	_, err = l.Load(context.Background(), "enc.properties")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "https://example.com/enc.properties")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "file:///etc/wssec/missing.properties")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Load_Order(t *testing.T) {
	first := memLocator(t, map[string]string{"/a": "first"})
	second := memLocator(t, map[string]string{"/a": "second", "/b": "only-second"})
	m := NewManager(first, second)

	data, err := m.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	data, err = m.Load(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "only-second", string(data))

	_, err = m.Load(context.Background(), "c")
	assert.True(t, IsNotFound(err))
}

func TestManager_Load_IOErrorSurfaces(t *testing.T) {
	ioErr := errors.New("disk on fire")
	failing := LocatorFunc(func(context.Context, string) ([]byte, error) {
		return nil, ioErr
	})
	m := NewManager(failing, memLocator(t, nil))

	_, err := m.Load(context.Background(), "a")
	assert.ErrorIs(t, err, ioErr)
	assert.False(t, IsNotFound(err))
}

func TestManager_AddResolverAndLoader(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.Loader())

	l := memLocator(t, map[string]string{"/k": "v"})
	m.AddResolver(l)
	m.SetLoader(l)
	assert.Same(t, l, m.Loader())

	data, err := m.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestWithLoader(t *testing.T) {
	fallback := memLocator(t, nil)
	override := memLocator(t, nil)

	ctx := context.Background()
	assert.Same(t, fallback, LoaderFrom(ctx, fallback))

	scoped := WithLoader(ctx, override)
	assert.Same(t, override, LoaderFrom(scoped, fallback))

	// the parent context is untouched once the scope is dropped
	assert.Same(t, fallback, LoaderFrom(ctx, fallback))

	assert.Equal(t, ctx, WithLoader(ctx, nil))
}
