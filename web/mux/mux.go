// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package mux wraps [http.ServeMux] with method aware routing and
// configurable "404 Not Found" and "405 Method Not Allowed" responses.
package mux

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodHead    Method = http.MethodHead
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
	MethodTrace   Method = http.MethodTrace
)

var knownMethods = []Method{
	MethodGet,
	MethodHead,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodOptions,
	MethodTrace,
}

// HttpOption configures a [Http].
type HttpOption func(*Http)

// NotFoundHandler sets the [http.Handler] for requests which match no
// registered pattern. Defaults to [http.NotFoundHandler].
func NotFoundHandler(h http.Handler) HttpOption {
	return func(mux *Http) {
		mux.notFound = h
	}
}

// MethodNotAllowedHandler sets the [http.Handler] for requests whose path
// matches a registered pattern but whose method does not. The "Allow"
// header is populated before h is called.
func MethodNotAllowedHandler(h http.Handler) HttpOption {
	return func(mux *Http) {
		mux.methodNotAllowed = h
	}
}

// Http is a request multiplexer backed by [http.ServeMux].
type Http struct {
	mux *http.ServeMux

	initFallbacksOnce sync.Once
	notFound          http.Handler
	methodNotAllowed  http.Handler

	patterns    []string
	pathMethods map[string][]Method
}

// NewHttp returns an empty [Http].
func NewHttp(opts ...HttpOption) *Http {
	mux := &Http{
		mux:              http.NewServeMux(),
		notFound:         http.NotFoundHandler(),
		methodNotAllowed: http.HandlerFunc(methodNotAllowed),
		pathMethods:      make(map[string][]Method),
	}
	for _, opt := range opts {
		opt(mux)
	}
	return mux
}

// Handle registers h for method and pattern. The pattern uses the
// [http.ServeMux] syntax without a method prefix, e.g. "/{page}".
// A GET handler also answers HEAD requests.
//
// Handle must not be called after the first request has been served.
func (m *Http) Handle(method Method, pattern string, h http.Handler) {
	if _, ok := m.pathMethods[pattern]; !ok {
		m.patterns = append(m.patterns, pattern)
	}
	m.pathMethods[pattern] = append(m.pathMethods[pattern], method)
	m.mux.Handle(fmt.Sprintf("%s %s", method, pattern), h)
}

// ServeHTTP implements the [http.Handler] interface.
func (m *Http) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.initFallbacksOnce.Do(m.registerFallbackHandlers)

	m.mux.ServeHTTP(w, r)
}

func (m *Http) registerFallbackHandlers() {
	m.mux.Handle("/{path...}", m.notFound)

	for _, pattern := range m.patterns {
		allowed := allowedMethods(m.pathMethods[pattern])
		h := allowHeader(allowed, m.methodNotAllowed)
		for _, method := range knownMethods {
			if slices.Contains(allowed, method) {
				continue
			}
			m.mux.Handle(fmt.Sprintf("%s %s", method, pattern), h)
		}
	}
}

func allowedMethods(registered []Method) []Method {
	allowed := slices.Clone(registered)
	if slices.Contains(allowed, MethodGet) && !slices.Contains(allowed, MethodHead) {
		allowed = append(allowed, MethodHead)
	}
	return allowed
}

func allowHeader(allowed []Method, next http.Handler) http.Handler {
	vals := make([]string, 0, len(allowed))
	for _, m := range allowed {
		vals = append(vals, string(m))
	}
	header := strings.Join(vals, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", header)
		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
