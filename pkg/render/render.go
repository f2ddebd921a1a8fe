// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package render executes named pages from a directory of html templates.
//
// Templates are never cached. Every call to [Renderer.Render] parses the
// whole template tree again so edits on disk show up on the next request.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/z5labs/folio/pkg/noop"
	"github.com/z5labs/folio/pkg/slogfield"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/folio/pkg/render"

// DefaultPage is rendered when an empty page name is requested.
const DefaultPage = "index"

// PagesDir is the directory, relative to the template root, which holds
// templates addressable as pages.
const PagesDir = "pages"

// Option configures a [Renderer].
type Option func(*Renderer)

// Extension sets the file extension, including the leading dot, of
// template files. Defaults to ".html".
func Extension(ext string) Option {
	return func(r *Renderer) {
		r.ext = ext
	}
}

// Funcs adds functions to the template function map. They take precedence
// over the sprig functions which are always available.
func Funcs(fm template.FuncMap) Option {
	return func(r *Renderer) {
		for name, f := range fm {
			r.funcs[name] = f
		}
	}
}

// MissingKey controls what happens when a template indexes a map with a
// key which is not present. Accepted values are the same as the
// "missingkey" option of [template.Template.Option]: "default", "zero"
// and "error".
func MissingKey(mode string) Option {
	return func(r *Renderer) {
		r.missingKey = mode
	}
}

// LogHandler sets where render diagnostics are written.
func LogHandler(h slog.Handler) Option {
	return func(r *Renderer) {
		r.log = slog.New(h)
	}
}

// Renderer renders pages found under a template root.
type Renderer struct {
	fs         afero.Fs
	root       string
	ext        string
	funcs      template.FuncMap
	missingKey string
	log        *slog.Logger
	tracer     trace.Tracer
}

// NewRenderer returns a Renderer for the templates under root in fsys.
func NewRenderer(fsys afero.Fs, root string, opts ...Option) *Renderer {
	r := &Renderer{
		fs:         fsys,
		root:       root,
		ext:        ".html",
		funcs:      sprig.FuncMap(),
		missingKey: "default",
		log:        slog.New(noop.LogHandler{}),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TemplatesUnavailableError is returned when the template root can not be
// walked or one of its templates fails to parse.
type TemplatesUnavailableError struct {
	Root  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TemplatesUnavailableError) Error() string {
	return fmt.Sprintf("failed to load templates from %s: %s", e.Root, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TemplatesUnavailableError) Unwrap() error {
	return e.Cause
}

// PageNotFoundError is returned when no template exists for a page.
type PageNotFoundError struct {
	Page string
}

// Error implements the [builtin.error] interface.
func (e PageNotFoundError) Error() string {
	return fmt.Sprintf("page not found: %s", e.Page)
}

// ExecError is returned when a page template fails to execute.
type ExecError struct {
	Page  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ExecError) Error() string {
	return fmt.Sprintf("failed to render page %s: %s", e.Page, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ExecError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err means the requested page could not be
// produced, as opposed to the templates being unavailable altogether.
func IsNotFound(err error) bool {
	var pnf PageNotFoundError
	if errors.As(err, &pnf) {
		return true
	}
	var ee ExecError
	return errors.As(err, &ee)
}

// Templates is a parsed template tree, ready to render any page in it.
type Templates struct {
	root   string
	set    *template.Template
	tracer trace.Tracer
}

// Templates parses every template under the root. The result reflects
// the files on disk at the time of the call.
func (r *Renderer) Templates(ctx context.Context) (*Templates, error) {
	spanCtx, span := r.tracer.Start(ctx, "render.Templates", trace.WithAttributes(
		attribute.String("render.root", r.root),
	))
	defer span.End()

	set, err := r.parse(spanCtx)
	if err != nil {
		err = TemplatesUnavailableError{Root: r.root, Cause: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	t := &Templates{
		root:   r.root,
		set:    set,
		tracer: r.tracer,
	}
	return t, nil
}

// Render executes the template for page with data. Page templates are
// named "pages/<page>". An empty page renders [DefaultPage].
func (t *Templates) Render(ctx context.Context, page string, data any) ([]byte, error) {
	if page == "" {
		page = DefaultPage
	}

	_, span := t.tracer.Start(ctx, "render.Execute", trace.WithAttributes(
		attribute.String("render.page", page),
	))
	defer span.End()

	b, err := t.execute(page, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return b, nil
}

func (t *Templates) execute(page string, data any) ([]byte, error) {
	name := path.Join(PagesDir, page)
	if !strings.HasPrefix(name, PagesDir+"/") {
		return nil, PageNotFoundError{Page: page}
	}
	tmpl := t.set.Lookup(name)
	if tmpl == nil {
		return nil, PageNotFoundError{Page: page}
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, data)
	if err != nil {
		return nil, ExecError{Page: page, Cause: err}
	}
	return buf.Bytes(), nil
}

// Render parses the template tree and executes the template for page
// with data. It is [Renderer.Templates] followed by [Templates.Render].
//
// Every template under the root is parsed so pages can invoke layouts and
// partials by their path relative to the root without the extension,
// e.g. {{template "partials/header" .}}.
func (r *Renderer) Render(ctx context.Context, page string, data any) ([]byte, error) {
	if page == "" {
		page = DefaultPage
	}

	spanCtx, span := r.tracer.Start(ctx, "render.Render", trace.WithAttributes(
		attribute.String("render.page", page),
		attribute.String("render.root", r.root),
	))
	defer span.End()

	t, err := r.Templates(spanCtx)
	if err != nil {
		return nil, err
	}
	return t.Render(spanCtx, page, data)
}

func (r *Renderer) parse(ctx context.Context) (*template.Template, error) {
	set := template.New("").
		Funcs(r.funcs).
		Option("missingkey=" + r.missingKey)

	n := 0
	err := afero.Walk(r.fs, r.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(p) != r.ext {
			return nil
		}
		if strings.TrimSuffix(filepath.Base(p), r.ext) == "" {
			return nil
		}

		name, err := r.templateName(p)
		if err != nil {
			return err
		}

		b, err := afero.ReadFile(r.fs, p)
		if err != nil {
			return err
		}

		_, err = set.New(name).Parse(string(b))
		if err != nil {
			return err
		}
		n++
		r.log.DebugContext(ctx, "parsed template", slogfield.Template(name))
		return nil
	})
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("render.templates", n))
	return set, nil
}

func (r *Renderer) templateName(p string) (string, error) {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), r.ext), nil
}
