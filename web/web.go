// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package web serves rendered pages over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/z5labs/folio/pkg/health"
	"github.com/z5labs/folio/pkg/noop"
	"github.com/z5labs/folio/pkg/slogfield"
	"github.com/z5labs/folio/web/mux"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// Option represents configurable attributes of [App].
type Option func(*App)

// Listener sets the [net.Listener] the server accepts connections on.
// It takes precedence over [Addr].
func Listener(ls net.Listener) Option {
	return func(a *App) {
		a.ls = ls
	}
}

// Addr sets the TCP address to listen on when no [Listener] is
// given. Defaults to "127.0.0.1:8080".
func Addr(addr string) Option {
	return func(a *App) {
		a.addr = addr
	}
}

// ReadHeaderTimeout bounds how long the server waits for request headers.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(a *App) {
		a.readHeaderTimeout = d
	}
}

// ShutdownTimeout bounds how long in-flight requests are given to
// complete once the context passed to [App.Run] is cancelled.
func ShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		a.shutdownTimeout = d
	}
}

// LogHandler sets where access logs and server diagnostics are written.
func LogHandler(h slog.Handler) Option {
	return func(a *App) {
		a.log = slog.New(h)
	}
}

// Readiness sets the metric reported by "/health/readiness". The
// server is always considered ready by default.
func Readiness(m health.Metric) Option {
	return func(a *App) {
		a.readiness = m
	}
}

// Route registers h for method and pattern.
func Route(method mux.Method, pattern string, h http.Handler) Option {
	return func(a *App) {
		a.routes = append(a.routes, route{method: method, pattern: pattern, handler: h})
	}
}

// ServePages registers h for "GET /{page}" and redirects "GET /" to the
// default page. The handler can read the requested page with
// [http.Request.PathValue]("page").
func ServePages(h http.Handler) Option {
	return func(a *App) {
		a.routes = append(
			a.routes,
			route{method: mux.MethodGet, pattern: "/{$}", handler: redirectToDefaultPage()},
			route{method: mux.MethodGet, pattern: "/{page}", handler: h},
		)
	}
}

type route struct {
	method  mux.Method
	pattern string
	handler http.Handler
}

// App is a [folio.App] which serves HTTP until its context is cancelled.
type App struct {
	ls                net.Listener
	addr              string
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	log               *slog.Logger

	routes    []route
	liveness  health.Binary
	readiness health.Metric

	handlerOnce sync.Once
	handler     http.Handler

	listen func(network, addr string) (net.Listener, error)
}

// NewApp initializes a [App].
func NewApp(opts ...Option) *App {
	app := &App{
		addr:              "127.0.0.1:8080",
		readHeaderTimeout: 2 * time.Second,
		shutdownTimeout:   5 * time.Second,
		log:               slog.New(noop.LogHandler{}),
		readiness:         health.And(),
		listen:            net.Listen,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Handler returns the fully instrumented [http.Handler] served by [App.Run].
func (app *App) Handler() http.Handler {
	app.handlerOnce.Do(func() {
		app.handler = app.buildHandler()
	})
	return app.handler
}

func (app *App) buildHandler() http.Handler {
	m := mux.NewHttp(
		mux.NotFoundHandler(http.HandlerFunc(notFound)),
	)

	m.Handle(mux.MethodGet, "/health/liveness", health.Handler(&app.liveness))
	m.Handle(mux.MethodGet, "/health/readiness", health.Handler(health.And(&app.liveness, app.readiness)))

	for _, r := range app.routes {
		m.Handle(r.method, r.pattern, otelhttp.WithRouteTag(r.pattern, r.handler))
	}

	var h http.Handler = m
	h = trimTrailingSlash(h)
	h = accessLog(app.log, h)
	h = requestID(h)
	return otelhttp.NewHandler(
		h,
		"folio",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)
}

// Run implements the [folio.App] interface.
func (app *App) Run(ctx context.Context) error {
	ls, err := app.listener()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: app.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(app.log.Handler(), slog.LevelError),
	}

	app.log.InfoContext(ctx, "serving pages", slogfield.String("addr", ls.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return httpServer.Serve(ls)
	})
	eg.Go(func() error {
		<-egctx.Done()
		app.liveness.MarkUnhealthy()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = eg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) listener() (net.Listener, error) {
	if app.ls != nil {
		return app.ls, nil
	}
	return app.listen("tcp", app.addr)
}
