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

// Package policy looks up WS-SecurityPolicy assertions.
//
// The same assertion may be declared under the SP 1.1 or the SP 1.2
// namespace. Lookups by local name check SP 1.1 first.
package policy

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/beevik/etree"
)

// Policy namespaces.
const (
	SP11Namespace = "http://schemas.xmlsoap.org/ws/2005/07/securitypolicy"
	SP12Namespace = "http://docs.oasis-open.org/ws-sx/ws-securitypolicy/200702"
)

// AssertionMapKey is the exchange property holding the *AssertionMap of
// the effective policy.
const AssertionMapKey = "policy.assertion-info-map"

// Well-known assertion local names.
const (
	IncludeTimestamp  = "IncludeTimestamp"
	AsymmetricBinding = "AsymmetricBinding"
	SymmetricBinding  = "SymmetricBinding"
	TransportBinding  = "TransportBinding"
)

// ErrInvalidDocument is returned when a policy document cannot be parsed.
var ErrInvalidDocument = errors.New("policy: invalid document")

// QName is a namespace-qualified XML name.
type QName struct {
	Space string
	Local string
}

// String returns the name in {namespace}local form.
func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return "{" + q.Space + "}" + q.Local
}

// AssertionInfo is one assertion of the effective policy and whether it
// has been satisfied.
type AssertionInfo struct {
	Name     QName
	Attrs    map[string]string
	asserted atomic.Bool
}

// NewAssertionInfo creates an unasserted assertion.
func NewAssertionInfo(name QName) *AssertionInfo {
	return &AssertionInfo{Name: name, Attrs: map[string]string{}}
}

// Asserted reports whether the assertion has been satisfied.
func (a *AssertionInfo) Asserted() bool {
	return a.asserted.Load()
}

// SetAsserted marks the assertion as satisfied or not.
func (a *AssertionInfo) SetAsserted(v bool) {
	a.asserted.Store(v)
}

// AssertionMap groups assertions by qualified name. Names and the
// assertions under each name keep insertion order.
type AssertionMap struct {
	order   []QName
	entries map[QName][]*AssertionInfo
}

// NewAssertionMap creates an empty map.
func NewAssertionMap() *AssertionMap {
	return &AssertionMap{entries: make(map[QName][]*AssertionInfo)}
}

// Add appends info under its name.
func (m *AssertionMap) Add(info *AssertionInfo) {
	if _, ok := m.entries[info.Name]; !ok {
		m.order = append(m.order, info.Name)
	}
	m.entries[info.Name] = append(m.entries[info.Name], info)
}

// Get returns the assertions stored under name.
func (m *AssertionMap) Get(name QName) []*AssertionInfo {
	if m == nil {
		return nil
	}
	return m.entries[name]
}

// Names returns the qualified names in insertion order.
func (m *AssertionMap) Names() []QName {
	out := make([]QName, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of assertions.
func (m *AssertionMap) Len() int {
	n := 0
	for _, infos := range m.entries {
		n += len(infos)
	}
	return n
}

// FirstByLocalName returns the first assertion named local under the SP
// 1.1 namespace, else under SP 1.2, else nil. Alternatives beyond the
// first are not consulted.
func FirstByLocalName(m *AssertionMap, local string) *AssertionInfo {
	for _, ns := range []string{SP11Namespace, SP12Namespace} {
		if infos := m.Get(QName{Space: ns, Local: local}); len(infos) > 0 {
			return infos[0]
		}
	}
	return nil
}

// Parse collects every SP 1.1 and SP 1.2 element of a WS-Policy document,
// in document order.
func Parse(data []byte) (*AssertionMap, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrInvalidDocument)
	}

	m := NewAssertionMap()
	collect(root, m)
	return m, nil
}

func collect(e *etree.Element, m *AssertionMap) {
	switch ns := e.NamespaceURI(); ns {
	case SP11Namespace, SP12Namespace:
		info := NewAssertionInfo(QName{Space: ns, Local: e.Tag})
		for _, attr := range e.Attr {
			info.Attrs[attr.Key] = attr.Value
		}
		m.Add(info)
	}
	for _, child := range e.ChildElements() {
		collect(child, m)
	}
}
