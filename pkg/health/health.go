// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether parts of the server are able to do work.
package health

import (
	"context"
	"net/http"
	"sync"

	"github.com/spf13/afero"
)

// Metric reports whether something is currently healthy.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc adapts a func into a [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a [Metric] flipped by hand.
// The zero value is healthy.
type Binary struct {
	mu        sync.Mutex
	unhealthy bool
}

// Toggle flips between healthy and unhealthy.
func (m *Binary) Toggle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthy = !m.unhealthy
}

// MarkUnhealthy sets the state of Binary to unhealthy.
func (m *Binary) MarkUnhealthy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthy = true
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unhealthy
}

// AndMetric is healthy only while all of its metrics are.
type AndMetric struct {
	metrics []Metric
}

// And combines metrics into one [Metric]. An empty And is healthy.
func And(metrics ...Metric) AndMetric {
	return AndMetric{
		metrics: metrics,
	}
}

// Healthy implements the [Metric] interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m.metrics {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}

// DirExists is healthy while path exists in fsys and is a directory.
func DirExists(fsys afero.Fs, path string) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		info, err := fsys.Stat(path)
		if err != nil {
			return false
		}
		return info.IsDir()
	})
}

// Handler responds with "200 OK" while m is healthy and
// "503 Service Unavailable" otherwise.
func Handler(m Metric) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Healthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
}
