// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig builds OpenTelemetry tracer providers for the
// supported span exporters.
package otelconfig

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted by [Config].
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterGCP    = "gcp"
)

// Config selects and configures a span exporter.
type Config struct {
	Exporter    string `config:"exporter"`
	ServiceName string `config:"serviceName"`

	OTLP struct {
		Target string `config:"target"`
	} `config:"otlp"`

	GCP struct {
		ProjectId string `config:"projectId"`
	} `config:"gcp"`
}

// UnknownExporterError is returned by [New] for an unsupported exporter name.
type UnknownExporterError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown otel exporter: %s", e.Name)
}

// New returns the [Initializer] for cfg.Exporter. An empty exporter
// name is treated as [ExporterNone]. Spans exported to stdout are
// written to out.
func New(cfg Config, out io.Writer) (Initializer, error) {
	switch cfg.Exporter {
	case "", ExporterNone:
		return Noop, nil
	case ExporterStdout:
		return Local(ServiceName(cfg.ServiceName), LocalWriter(out)), nil
	case ExporterOTLP:
		return OTLP(ServiceName(cfg.ServiceName), OTLPTarget(cfg.OTLP.Target)), nil
	case ExporterGCP:
		return GoogleCloud(ServiceName(cfg.ServiceName), GoogleCloudProjectId(cfg.GCP.ProjectId)), nil
	default:
		return nil, UnknownExporterError{Name: cfg.Exporter}
	}
}

// Common holds the settings shared by every exporter.
type Common struct {
	ServiceName string
}

// CommonOption configures settings shared by every exporter.
type CommonOption interface {
	GoogleCloudOption
	LocalOption
	OTLPOption
}

type commonOptionFunc func(*Common)

func (f commonOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(&cfg.Common)
}

// ServiceName sets the "service.name" resource attribute.
func ServiceName(name string) CommonOption {
	return commonOptionFunc(func(c *Common) {
		c.ServiceName = name
	})
}

// Initializer creates a [trace.TracerProvider]. Providers which buffer
// spans also implement Shutdown(context.Context) error.
type Initializer interface {
	Init(context.Context) (trace.TracerProvider, error)
}

// Noop disables tracing.
var Noop = noopConfiger{}

type noopConfiger struct{}

func (noopConfiger) Init(context.Context) (trace.TracerProvider, error) {
	return tracenoop.NewTracerProvider(), nil
}

// LocalConfig is the config for the Local Initializer.
type LocalConfig struct {
	Common

	Out io.Writer
}

// LocalOption are options for the Local Initializer.
type LocalOption interface {
	ApplyLocal(*LocalConfig)
}

type localOptionFunc func(*LocalConfig)

func (f localOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(cfg)
}

// LocalWriter sets where spans are written. Defaults to [os.Stdout].
func LocalWriter(w io.Writer) LocalOption {
	return localOptionFunc(func(lc *LocalConfig) {
		if w != nil {
			lc.Out = w
		}
	})
}

// Local returns an Initializer which pretty prints spans as JSON.
func Local(opts ...LocalOption) Initializer {
	cfg := LocalConfig{
		Out: os.Stdout,
	}
	for _, opt := range opts {
		opt.ApplyLocal(&cfg)
	}
	return cfg
}

// Init implements the Initializer interface.
func (cfg LocalConfig) Init(ctx context.Context) (trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Out),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res, err := serviceResource(ctx, cfg.Common)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

func serviceResource(ctx context.Context, c Common, extra ...resource.Option) (*resource.Resource, error) {
	opts := append([]resource.Option{
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(c.ServiceName),
		),
	}, extra...)
	return resource.New(ctx, opts...)
}
