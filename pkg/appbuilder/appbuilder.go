// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides helpers for common folio.AppBuilder patterns.
package appbuilder

import (
	"context"

	"github.com/z5labs/folio"
	"github.com/z5labs/folio/internal/try"
)

// Recover wraps builder with panic recovery. A recovered panic is
// returned as a [try.PanicError] which unwraps to the panic value when
// that value is an error.
func Recover[T any](builder folio.AppBuilder[T]) folio.AppBuilder[T] {
	return folio.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ folio.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}
