// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"

	"github.com/z5labs/folio"
	"github.com/z5labs/folio/pkg/app"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TextMapPropagatorInitializer is implemented by configs which choose
// how trace context is carried across process boundaries.
type TextMapPropagatorInitializer interface {
	InitTextMapPropogator(context.Context) (propagation.TextMapPropagator, error)
}

// TracerProviderInitializer is implemented by configs which choose
// where spans are exported.
type TracerProviderInitializer interface {
	InitTracerProvider(context.Context) (trace.TracerProvider, error)
}

// OTelInitializer combines every OpenTelemetry initializer.
type OTelInitializer interface {
	TextMapPropagatorInitializer
	TracerProviderInitializer
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// OTel registers the global propagator and tracer provider described by
// cfg before calling builder. If the tracer provider can be shut down,
// the built app flushes and shuts it down after it has finished running.
func OTel[T OTelInitializer](builder folio.AppBuilder[T]) folio.AppBuilder[T] {
	return folio.AppBuilderFunc[T](func(ctx context.Context, cfg T) (folio.App, error) {
		tmp, err := cfg.InitTextMapPropogator(ctx)
		if err != nil {
			return nil, err
		}
		if tmp != nil {
			otel.SetTextMapPropagator(tmp)
		}

		tp, err := cfg.InitTracerProvider(ctx)
		if err != nil {
			return nil, err
		}
		if tp != nil {
			otel.SetTracerProvider(tp)
		}

		base, err := builder.Build(ctx, cfg)
		if err != nil {
			return nil, err
		}

		sd, ok := tp.(shutdowner)
		if !ok {
			return base, nil
		}
		return app.WithLifecycleHooks(base, app.Lifecycle{
			PostRun: app.LifecycleHookFunc(sd.Shutdown),
		}), nil
	})
}
