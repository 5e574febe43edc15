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

// Package constraint compiles certificate subject constraints.
//
// A constraint string is a comma separated list of regular expressions.
// Each segment is trimmed and compiled on its own; segments that fail to
// compile are logged and dropped so the remaining constraints still apply.
// A subject satisfies a Set when any constraint matches the whole subject
// DN, evaluated in the order the segments were given.
package constraint

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"

	"github.com/jeremyhahn/go-wssec/pkg/logging"
	"github.com/jeremyhahn/go-wssec/pkg/metrics"
	"github.com/jeremyhahn/go-wssec/pkg/wsserr"
)

// Separator splits the raw constraint string into segments.
const Separator = ","

// Constraint is one compiled subject pattern.
type Constraint struct {
	raw string
	re  *regexp.Regexp
}

// New compiles a single pattern. The pattern must match the entire subject.
// It is parsed on its own before anchoring, so a segment cannot close the
// anchoring group.
func New(pattern string) (Constraint, error) {
	if _, err := syntax.Parse(pattern, syntax.Perl); err != nil {
		return Constraint{}, wsserr.Pattern(fmt.Sprintf("compile %q", pattern), err)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return Constraint{}, wsserr.Pattern(fmt.Sprintf("compile %q", pattern), err)
	}
	return Constraint{raw: pattern, re: re}, nil
}

// String returns the pattern as written in the constraint string.
func (c Constraint) String() string {
	return c.raw
}

// Matches reports whether subject matches the pattern in full.
func (c Constraint) Matches(subject string) bool {
	if c.re == nil {
		return false
	}
	return c.re.MatchString(subject)
}

// Set is an ordered sequence of constraints.
type Set []Constraint

// MatchAny reports whether any constraint matches subject. Constraints are
// tried in order and the first match wins. An empty set matches nothing.
func (s Set) MatchAny(subject string) bool {
	for _, c := range s {
		if c.Matches(subject) {
			return true
		}
	}
	return false
}

// Strings returns the raw patterns in order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.raw
	}
	return out
}

// Compiler turns constraint strings into sets, logging segments it drops.
type Compiler struct {
	logger *logging.Logger
}

// NewCompiler returns a compiler. A nil logger selects the default logger.
func NewCompiler(logger *logging.Logger) *Compiler {
	return &Compiler{logger: logging.OrDefault(logger)}
}

// Compile splits raw on commas, trims each segment and compiles it. Empty
// segments are skipped. Segments that fail to compile are logged at error
// level and omitted. Compile returns nil only for empty input.
func (c *Compiler) Compile(raw string) Set {
	if raw == "" {
		return nil
	}
	segments := strings.Split(raw, Separator)
	set := make(Set, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		constraint, err := New(segment)
		if err != nil {
			c.logger.Error(err)
			metrics.RecordPatternError()
			continue
		}
		set = append(set, constraint)
	}
	return set
}

// Compile compiles raw with a default compiler.
func Compile(raw string) Set {
	return NewCompiler(nil).Compile(raw)
}
