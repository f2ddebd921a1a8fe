// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package datactx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/z5labs/folio/internal/try"
	"github.com/z5labs/folio/pkg/noop"
	"github.com/z5labs/folio/pkg/slogfield"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const instrumentationName = "github.com/z5labs/folio/pkg/datactx"

// Option configures a [Loader].
type Option func(*Loader)

// LogHandler sets where per entry diagnostics are written.
func LogHandler(h slog.Handler) Option {
	return func(l *Loader) {
		l.log = slog.New(h)
	}
}

// MaxConcurrency bounds how many entries may be loaded at once across
// the whole walk. Values less than or equal to 1 walk sequentially.
func MaxConcurrency(n int) Option {
	return func(l *Loader) {
		l.maxConcurrency = n
	}
}

// Loader builds a [Document] from a directory tree. A Loader holds no
// state between calls to [Loader.Load] and is safe for concurrent use.
type Loader struct {
	fs             afero.Fs
	log            *slog.Logger
	maxConcurrency int

	tracer         trace.Tracer
	entriesLoaded  metric.Int64Counter
	entriesSkipped metric.Int64Counter
}

// NewLoader returns a Loader which reads from fsys.
func NewLoader(fsys afero.Fs, opts ...Option) *Loader {
	meter := otel.Meter(instrumentationName)
	loaded, err := meter.Int64Counter(
		"datactx.entries.loaded",
		metric.WithDescription("Number of data files and directories added to a document."),
	)
	if err != nil {
		loaded = metricnoop.Int64Counter{}
	}
	skipped, err := meter.Int64Counter(
		"datactx.entries.skipped",
		metric.WithDescription("Number of data files and directories omitted from a document because they failed to load."),
	)
	if err != nil {
		skipped = metricnoop.Int64Counter{}
	}

	l := &Loader{
		fs:             fsys,
		log:            slog.New(noop.LogHandler{}),
		tracer:         otel.Tracer(instrumentationName),
		entriesLoaded:  loaded,
		entriesSkipped: skipped,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RootUnreadableError is returned by [Loader.Load] when the root
// exists but its entries cannot be listed.
type RootUnreadableError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e RootUnreadableError) Error() string {
	return fmt.Sprintf("failed to read data directory %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e RootUnreadableError) Unwrap() error {
	return e.Cause
}

// TrailingDataError occurs when a ".json" file holds more than one JSON value.
type TrailingDataError struct {
	Offset int64
}

// Error implements the [builtin.error] interface.
func (e TrailingDataError) Error() string {
	return fmt.Sprintf("unexpected data after top-level value at offset %d", e.Offset)
}

// ErrInvalidUTF8 is reported for data files which are not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("file is not valid utf-8")

// Load walks root and returns its contents as a [Document].
//
// A root which does not exist yields an empty document. Any entry that fails
// to load, whether its metadata, its contents or its JSON cannot be read, is
// logged and left out of the document without affecting its siblings.
//
// Load only returns an error if root exists but cannot be listed, in which
// case a [RootUnreadableError] is returned, or if ctx is done before the walk
// completes, in which case ctx.Err() is returned.
//
// Keys are not guaranteed to be unique. A directory "a" and a file "a.json",
// or the files "a.json" and "a.txt", all map to the key "a" and the last one
// inserted wins. Sibling iteration order is not defined, and with
// [MaxConcurrency] greater than 1 neither is insertion order, so which
// colliding entry wins is unspecified.
func (l *Loader) Load(ctx context.Context, root string) (Document, error) {
	spanCtx, span := l.tracer.Start(ctx, "datactx.Load", trace.WithAttributes(
		attribute.String("datactx.root", root),
	))
	defer span.End()

	w := &walker{
		Loader: l,
		span:   span,
	}
	if l.maxConcurrency > 1 {
		// the calling goroutine always does work so only n-1 extra are needed
		w.sem = semaphore.NewWeighted(int64(l.maxConcurrency - 1))
	}

	doc, err := w.walkRoot(spanCtx, root)
	span.SetAttributes(
		attribute.Int64("datactx.entries.loaded", w.nLoaded.Load()),
		attribute.Int64("datactx.entries.skipped", w.nSkipped.Load()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	l.log.DebugContext(
		spanCtx,
		"loaded data directory",
		slogfield.Path(root),
		slog.Int64("loaded", w.nLoaded.Load()),
		slog.Int64("skipped", w.nSkipped.Load()),
	)
	return doc, nil
}

type walker struct {
	*Loader

	span trace.Span
	sem  *semaphore.Weighted

	nLoaded  atomic.Int64
	nSkipped atomic.Int64
}

func (w *walker) walkRoot(ctx context.Context, root string) (Document, error) {
	_, err := w.fs.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		w.log.InfoContext(ctx, "data directory does not exist, using an empty document", slogfield.Path(root))
		return make(Document), nil
	}

	doc, err := w.walkDir(ctx, root)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, RootUnreadableError{Path: root, Cause: err}
	}
	return doc, nil
}

// walkDir returns an empty document if dir has disappeared since its
// parent was listed.
func (w *walker) walkDir(ctx context.Context, dir string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := w.readDirNames(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return make(Document), nil
	}
	if err != nil {
		return nil, err
	}

	doc := make(Document, len(names))
	var mu sync.Mutex
	insert := func(k string, v Value) {
		mu.Lock()
		defer mu.Unlock()
		doc[k] = v
	}

	var g errgroup.Group
	for _, name := range names {
		path := filepath.Join(dir, name)

		if w.sem == nil || !w.sem.TryAcquire(1) {
			w.loadEntry(ctx, path, name, insert)
			continue
		}
		g.Go(func() error {
			defer w.sem.Release(1)
			w.loadEntry(ctx, path, name, insert)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (w *walker) readDirNames(dir string) (names []string, err error) {
	f, err := w.fs.Open(dir)
	if err != nil {
		return nil, err
	}
	defer try.Close(&err, f)

	return f.Readdirnames(-1)
}

func (w *walker) loadEntry(ctx context.Context, path, name string, insert func(string, Value)) {
	if ctx.Err() != nil {
		return
	}

	info, err := w.fs.Stat(path)
	if err != nil {
		w.skip(ctx, "failed to read metadata", path, err)
		return
	}

	switch {
	case info.IsDir():
		child, err := w.walkDir(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.skip(ctx, "failed to load directory", path, err)
			return
		}
		insert(name, Object(child))
		w.markLoaded(ctx, "loaded directory", path)
	case info.Mode().IsRegular():
		w.loadFile(ctx, path, name, insert)
	}
}

func (w *walker) loadFile(ctx context.Context, path, name string, insert func(string, Value)) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if ext == "" || stem == "" {
		return
	}

	switch ext {
	case ".json":
		b, err := w.readText(path)
		if err != nil {
			w.skip(ctx, "failed to read file", path, err)
			return
		}
		v, err := decodeJSON(b)
		if err != nil {
			w.skip(ctx, "failed to parse json file", path, err)
			return
		}
		insert(stem, JSON{Value: v})
		w.markLoaded(ctx, "loaded json file", path)
	case ".txt":
		b, err := w.readText(path)
		if err != nil {
			w.skip(ctx, "failed to read file", path, err)
			return
		}
		insert(stem, String(b))
		w.markLoaded(ctx, "loaded text file", path)
	}
}

func (w *walker) readText(path string) ([]byte, error) {
	b, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, ErrInvalidUTF8
	}
	return b, nil
}

// decodeJSON keeps numbers as json.Number so no precision is lost.
// Document.Data narrows them for templates.
func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v any
	err := dec.Decode(&v)
	if err != nil {
		return nil, err
	}

	_, err = dec.Token()
	if !errors.Is(err, io.EOF) {
		return nil, TrailingDataError{Offset: dec.InputOffset()}
	}
	return v, nil
}

func (w *walker) markLoaded(ctx context.Context, msg, path string) {
	w.nLoaded.Add(1)
	w.entriesLoaded.Add(ctx, 1)
	w.log.DebugContext(ctx, msg, slogfield.Path(path))
}

func (w *walker) skip(ctx context.Context, msg, path string, err error) {
	w.nSkipped.Add(1)
	w.entriesSkipped.Add(ctx, 1)
	w.span.AddEvent("entry skipped", trace.WithAttributes(
		attribute.String("datactx.path", path),
		attribute.String("datactx.reason", msg),
		attribute.String("error", err.Error()),
	))
	w.log.WarnContext(ctx, msg, slogfield.Path(path), slogfield.Error(err))
}
