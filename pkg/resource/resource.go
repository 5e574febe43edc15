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

// Package resource loads configuration resources by name.
//
// A Locator is the "load bytes by name" capability. FSLocator resolves names
// relative to a filesystem root, URLLocator resolves file URLs and Manager
// chains several locators. A context may carry a substitute loader for the
// duration of one resolution; see WithLoader.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/jeremyhahn/go-wssec/pkg/validation"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when no locator knows the resource.
	ErrNotFound = errors.New("resource: not found")

	// ErrMalformed is returned when a resource was found but its content
	// could not be parsed.
	ErrMalformed = errors.New("resource: malformed")
)

// Locator loads the bytes of a named resource.
type Locator interface {
	// Load returns the content of name, or an error wrapping ErrNotFound
	// when the resource does not exist. Other errors are I/O failures.
	Load(ctx context.Context, name string) ([]byte, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, name string) ([]byte, error)

// Load implements Locator.
func (f LocatorFunc) Load(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// FSLocator resolves names relative to the root of an afero filesystem.
type FSLocator struct {
	fs afero.Fs
}

// NewFSLocator creates a locator over fs.
func NewFSLocator(fs afero.Fs) *FSLocator {
	return &FSLocator{fs: fs}
}

// NewDirLocator creates a locator rooted at dir on the OS filesystem.
func NewDirLocator(dir string) *FSLocator {
	return NewFSLocator(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Load implements Locator.
func (l *FSLocator) Load(_ context.Context, name string) ([]byte, error) {
	clean, err := validation.CleanResourceName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	data, err := afero.ReadFile(l.fs, clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("resource: read %s: %w", name, err)
	}
	return data, nil
}

// NewWorkingDirLocator creates a locator rooted at the process working
// directory.
func NewWorkingDirLocator() *FSLocator {
	dir, err := os.Getwd()
	if err != nil {
		dir = string(os.PathSeparator)
	}
	return NewDirLocator(dir)
}

// Fs returns the underlying filesystem.
func (l *FSLocator) Fs() afero.Fs {
	return l.fs
}

// URLLocator resolves file URLs. Names that are not file URLs are reported
// as not found.
type URLLocator struct {
	fs afero.Fs
}

// NewURLLocator creates a URL locator over fs. A nil fs selects the OS
// filesystem.
func NewURLLocator(fs afero.Fs) *URLLocator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &URLLocator{fs: fs}
}

// Load implements Locator.
func (l *URLLocator) Load(ctx context.Context, name string) ([]byte, error) {
	u, err := url.Parse(name)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("%w: %s is not a file URL", ErrNotFound, name)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return l.LoadURL(ctx, &url.URL{Scheme: "file", Path: p})
}

// LoadURL loads the content a file URL points to.
func (l *URLLocator) LoadURL(_ context.Context, u *url.URL) ([]byte, error) {
	if u == nil || u.Scheme != "file" {
		return nil, fmt.Errorf("%w: unsupported URL", ErrNotFound)
	}
	data, err := afero.ReadFile(l.fs, u.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
		}
		return nil, fmt.Errorf("resource: read %s: %w", u, err)
	}
	return data, nil
}

// Manager resolves names through an ordered list of locators. It may also
// hold a loader that callers install for the duration of one resolution.
type Manager struct {
	mu        sync.RWMutex
	resolvers []Locator
	loader    Locator
}

// NewManager creates a manager with the given resolvers.
func NewManager(resolvers ...Locator) *Manager {
	return &Manager{resolvers: resolvers}
}

// AddResolver appends a locator to the chain.
func (m *Manager) AddResolver(l Locator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers = append(m.resolvers, l)
}

// SetLoader registers the loader callers should install while resolving
// through this manager.
func (m *Manager) SetLoader(l Locator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loader = l
}

// Loader returns the registered loader, or nil.
func (m *Manager) Loader() Locator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loader
}

// Load implements Locator. Resolvers are tried in order; the first one that
// finds the resource wins. When none does, the first I/O error is returned,
// otherwise ErrNotFound.
func (m *Manager) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	resolvers := make([]Locator, len(m.resolvers))
	copy(resolvers, m.resolvers)
	m.mu.RUnlock()

	var firstErr error
	for _, r := range resolvers {
		data, err := r.Load(ctx, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

type loaderKey struct{}

// WithLoader returns a context that carries l as the loader for nested
// resource lookups. The substitution ends with the returned context.
func WithLoader(ctx context.Context, l Locator) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loaderKey{}, l)
}

// LoaderFrom returns the loader carried by ctx, or fallback.
func LoaderFrom(ctx context.Context, fallback Locator) Locator {
	if ctx != nil {
		if l, ok := ctx.Value(loaderKey{}).(Locator); ok {
			return l
		}
	}
	return fallback
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
