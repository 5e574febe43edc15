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

// Package metrics provides Prometheus instrumentation for security
// configuration resolution: trust provider lookups, provider cache
// efficiency, callback resolution and constraint compilation.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all go-wssec metrics
	Namespace = "wssec"

	// Label names
	LabelRole       = "role"
	LabelSource     = "source"
	LabelStatus     = "status"
	LabelResult     = "result"
	LabelProvenance = "provenance"

	// Status values
	StatusSuccess = "success"
	StatusMiss    = "miss"
	StatusError   = "error"

	// Cache results
	ResultHit  = "hit"
	ResultMiss = "miss"

	// Resolution sources
	SourceRefID  = "ref_id"
	SourceFile   = "file"
	SourceObject = "object"
	SourceName   = "name"

	// Callback provenances
	ProvenanceOverride  = "override"
	ProvenanceClassName = "class_name"
	ProvenancePassword  = "password"
	ProvenanceNone      = "none"
)

var (
	// ResolutionsTotal tracks trust provider resolutions by role, source and status.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crypto_resolutions_total",
			Help:      "Total number of trust provider resolutions by role, source and status",
		},
		[]string{LabelRole, LabelSource, LabelStatus},
	)

	// ResolutionDuration tracks how long trust provider resolution takes.
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "crypto_resolution_duration_seconds",
			Help:      "Duration of trust provider resolution in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{LabelSource},
	)

	// CacheLookupsTotal tracks provider cache hits and misses.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crypto_cache_lookups_total",
			Help:      "Total number of provider cache lookups by result",
		},
		[]string{LabelResult},
	)

	// CallbackResolutionsTotal tracks which provenance supplied the callback handler.
	CallbackResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "callback_resolutions_total",
			Help:      "Total number of callback handler resolutions by provenance",
		},
		[]string{LabelProvenance},
	)

	// PatternErrorsTotal counts constraint segments dropped because they failed to compile.
	PatternErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pattern_errors_total",
			Help:      "Total number of certificate constraint segments that failed to compile",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordResolution records one trust provider resolution attempt.
//
// Parameters:
//   - role: the crypto role (e.g., "signature", "encryption")
//   - source: where the provider came from (use Source* constants)
//   - status: the outcome (use Status* constants)
//   - duration: the resolution duration in seconds
func RecordResolution(role, source, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	ResolutionsTotal.WithLabelValues(role, source, status).Inc()
	ResolutionDuration.WithLabelValues(source).Observe(duration)
}

// RecordCacheLookup records a provider cache hit or miss.
func RecordCacheLookup(hit bool) {
	if !enabled.Load() {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCallbackResolution records the provenance of a resolved callback handler.
func RecordCallbackResolution(provenance string) {
	if !enabled.Load() {
		return
	}
	CallbackResolutionsTotal.WithLabelValues(provenance).Inc()
}

// RecordPatternError records a constraint segment that was dropped.
func RecordPatternError() {
	if !enabled.Load() {
		return
	}
	PatternErrorsTotal.Inc()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
