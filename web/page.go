// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/z5labs/folio/pkg/datactx"
	"github.com/z5labs/folio/pkg/noop"
	"github.com/z5labs/folio/pkg/render"
	"github.com/z5labs/folio/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/z5labs/folio/web"

// DataLoader loads the document pages are rendered against.
type DataLoader interface {
	Load(ctx context.Context, root string) (datactx.Document, error)
}

// PageRenderer parses the template tree pages are rendered from.
type PageRenderer interface {
	Templates(ctx context.Context) (*render.Templates, error)
}

// PagesOption configures a [Pages] handler.
type PagesOption func(*Pages)

// PagesLogHandler sets where page rendering failures are written.
func PagesLogHandler(h slog.Handler) PagesOption {
	return func(p *Pages) {
		p.log = slog.New(h)
	}
}

// Pages parses the templates, loads the data directory and renders the
// requested page on every request. Data is only read once the templates
// have parsed.
type Pages struct {
	loader   DataLoader
	dataDir  string
	renderer PageRenderer
	log      *slog.Logger
	rendered metric.Int64Counter
}

// NewPages returns a [Pages] handler which reads its data from dataDir.
func NewPages(loader DataLoader, dataDir string, renderer PageRenderer, opts ...PagesOption) *Pages {
	rendered, err := otel.Meter(instrumentationName).Int64Counter(
		"web.pages.served",
		metric.WithDescription("Number of page requests partitioned by response status code."),
	)
	if err != nil {
		rendered = metricnoop.Int64Counter{}
	}

	p := &Pages{
		loader:   loader,
		dataDir:  dataDir,
		renderer: renderer,
		log:      slog.New(noop.LogHandler{}),
		rendered: rendered,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ServeHTTP implements the [http.Handler] interface.
func (p *Pages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := r.PathValue("page")
	if page == "" {
		page = render.DefaultPage
	}
	log := p.log.With(slogfield.RequestID(RequestID(ctx)), slogfield.Page(page))

	tmpls, err := p.renderer.Templates(ctx)
	if err != nil {
		p.fail(ctx, w, log, page, err)
		return
	}

	doc, err := p.loader.Load(ctx, p.dataDir)
	if err != nil {
		log.ErrorContext(ctx, "failed to load data files", slogfield.Error(err))
		p.respond(ctx, w, http.StatusInternalServerError, "Failed to load data files")
		return
	}

	b, err := tmpls.Render(ctx, page, doc.Data())
	if err != nil {
		p.fail(ctx, w, log, page, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	p.rendered.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.status_code", http.StatusOK)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (p *Pages) fail(ctx context.Context, w http.ResponseWriter, log *slog.Logger, page string, err error) {
	var unavailable render.TemplatesUnavailableError
	switch {
	case render.IsNotFound(err):
		log.WarnContext(ctx, "failed to render page", slogfield.Error(err))
		p.respond(ctx, w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found or rendering failed", page))
	case errors.As(err, &unavailable):
		log.ErrorContext(ctx, "failed to load templates", slogfield.Error(err))
		p.respond(ctx, w, http.StatusInternalServerError, "Failed to load templates")
	default:
		log.ErrorContext(ctx, "unexpected error while rendering page", slogfield.Error(err))
		p.respond(ctx, w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (p *Pages) respond(ctx context.Context, w http.ResponseWriter, status int, body string) {
	p.rendered.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.status_code", status)))
	http.Error(w, body, status)
}
