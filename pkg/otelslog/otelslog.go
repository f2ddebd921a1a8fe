// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog ties log records to the span they were written in.
package otelslog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Handler tags every record logged with a span in its context with
// an "otel" group holding the trace_id and span_id.
type Handler struct {
	next slog.Handler
}

// NewHandler returns a [Handler] which writes to next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

// New is shorthand for slog.New(NewHandler(next)).
func New(next slog.Handler) *slog.Logger {
	return slog.New(NewHandler(next))
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if attr, ok := spanAttr(ctx); ok {
		// records may be shared with other handlers
		r = r.Clone()
		r.AddAttrs(attr)
	}
	return h.next.Handle(ctx, r)
}

func spanAttr(ctx context.Context) (slog.Attr, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return slog.Attr{}, false
	}
	attr := slog.Group(
		"otel",
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
	return attr, true
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}
