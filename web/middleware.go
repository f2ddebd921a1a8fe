// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/z5labs/folio/pkg/render"
	"github.com/z5labs/folio/pkg/slogfield"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
)

// RequestIDHeader carries the id of a request. An incoming value is kept,
// otherwise a new one is generated. Either way it is echoed on the response.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id of the request ctx belongs to, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		m := httpsnoop.CaptureMetrics(next, w, r)

		log.InfoContext(
			r.Context(),
			"handled request",
			slogfield.RequestID(RequestID(r.Context())),
			slogfield.HTTP(r.Method, path, m.Code, m.Duration),
			slog.Int64("bytes", m.Written),
		)
	})
}

// trimTrailingSlash serves "/about/" as "/about".
func trimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if len(p) <= 1 || !strings.HasSuffix(p, "/") {
			next.ServeHTTP(w, r)
			return
		}

		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = p
		r2.URL.RawPath = ""
		next.ServeHTTP(w, r2)
	})
}

func redirectToDefaultPage() http.Handler {
	return http.RedirectHandler("/"+render.DefaultPage, http.StatusPermanentRedirect)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}
