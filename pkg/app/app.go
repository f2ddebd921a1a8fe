// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common folio.App implementation patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/folio"
	"github.com/z5labs/folio/internal/try"
)

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover wraps app with panic recovery. A recovered panic is returned
// as a [try.PanicError] which unwraps to the panic value when that
// value is an error.
func Recover(app folio.App) folio.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications cancels the context given to app once the
// process receives one of signals.
func WithSignalNotifications(app folio.App, signals ...os.Signal) folio.App {
	return runFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// LifecycleHook is work done before or after a [folio.App] runs.
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc adapts a func into a [LifecycleHook].
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Lifecycle holds the hooks run around a [folio.App].
type Lifecycle struct {
	// PreRun is executed before the underlying [folio.App]. If it fails
	// the app is not run.
	PreRun LifecycleHook

	// PostRun is always executed regardless if the underlying [folio.App]
	// returns an error or panics. It runs with a context which is not
	// cancelled when the app's context is.
	PostRun LifecycleHook
}

// WithLifecycleHooks runs the hooks of lifecycle around app.
func WithLifecycleHooks(app folio.App, lifecycle Lifecycle) folio.App {
	return runFunc(func(ctx context.Context) (err error) {
		if lifecycle.PreRun != nil {
			err = lifecycle.PreRun.Run(ctx)
			if err != nil {
				return err
			}
		}

		defer runPostRunHook(context.WithoutCancel(ctx), lifecycle.PostRun, &err)
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	if hook == nil {
		return
	}

	hookErr := hook.Run(ctx)

	// nil when both are nil
	*err = errors.Join(*err, hookErr)
}
