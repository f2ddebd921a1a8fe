// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield standardizes the attribute keys used in folio's logs.
package slogfield

import (
	"log/slog"
	"time"
)

// Any returns an slog.Attr for the supplied value.
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Path is the filesystem path of a data file, data directory or template.
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Page is the logical page name requested by a client.
func Page(name string) slog.Attr {
	return slog.String("page", name)
}

// Template is the fully qualified template name, e.g. "pages/index".
func Template(name string) slog.Attr {
	return slog.String("template", name)
}

// RequestID correlates every log line written while serving a request.
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// HTTP groups the access log attributes for a single response.
func HTTP(method, path string, status int, elapsed time.Duration) slog.Attr {
	return slog.Group(
		"http",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("elapsed", elapsed),
	)
}
