// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package service assembles the page server from its config.
package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/z5labs/folio"
	"github.com/z5labs/folio/config"
	"github.com/z5labs/folio/config/configtmpl"
	"github.com/z5labs/folio/pkg/app"
	"github.com/z5labs/folio/pkg/appbuilder"
	"github.com/z5labs/folio/pkg/datactx"
	"github.com/z5labs/folio/pkg/health"
	"github.com/z5labs/folio/pkg/otelconfig"
	"github.com/z5labs/folio/pkg/otelslog"
	"github.com/z5labs/folio/pkg/render"
	"github.com/z5labs/folio/web"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

//go:embed default_config.yaml
var defaultConfig []byte

// DefaultConfig returns the built-in config as a template rendered with
// the functions from [configtmpl].
func DefaultConfig() config.Source {
	return config.FromYaml(
		config.RenderTextTemplate(
			bytes.NewReader(defaultConfig),
			config.TemplateFuncs(configtmpl.Funcs()),
		),
	)
}

// Config is everything needed to run the page server.
type Config struct {
	Logging struct {
		Level  slog.Level `config:"level"`
		Format string     `config:"format"`
	} `config:"logging"`

	HTTP struct {
		Addr              string        `config:"addr"`
		ReadHeaderTimeout time.Duration `config:"readHeaderTimeout"`
		ShutdownTimeout   time.Duration `config:"shutdownTimeout"`
	} `config:"http"`

	Data struct {
		Dir            string `config:"dir"`
		MaxConcurrency int    `config:"maxConcurrency"`
	} `config:"data"`

	Templates struct {
		Dir        string `config:"dir"`
		Extension  string `config:"extension"`
		MissingKey string `config:"missingKey"`
	} `config:"templates"`

	OTel otelconfig.Config `config:"otel"`
}

// InitTextMapPropogator implements the [appbuilder.TextMapPropagatorInitializer] interface.
func (cfg Config) InitTextMapPropogator(ctx context.Context) (propagation.TextMapPropagator, error) {
	tmp := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	return tmp, nil
}

// InitTracerProvider implements the [appbuilder.TracerProviderInitializer] interface.
func (cfg Config) InitTracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	initializer, err := otelconfig.New(cfg.OTel, os.Stdout)
	if err != nil {
		return nil, err
	}
	return initializer.Init(ctx)
}

// InvalidConfigError is returned when a config value is out of range.
type InvalidConfigError struct {
	Key    string
	Value  any
	Reason string
}

// Error implements the [builtin.error] interface.
func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v: %s", e.Key, e.Value, e.Reason)
}

// Validate reports the first config value which can not be used.
func (cfg Config) Validate() error {
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return InvalidConfigError{Key: "logging.format", Value: cfg.Logging.Format, Reason: "must be json or text"}
	}
	if cfg.Data.Dir == "" {
		return InvalidConfigError{Key: "data.dir", Value: cfg.Data.Dir, Reason: "must not be empty"}
	}
	if cfg.Templates.Dir == "" {
		return InvalidConfigError{Key: "templates.dir", Value: cfg.Templates.Dir, Reason: "must not be empty"}
	}
	if !strings.HasPrefix(cfg.Templates.Extension, ".") || len(cfg.Templates.Extension) < 2 {
		return InvalidConfigError{Key: "templates.extension", Value: cfg.Templates.Extension, Reason: "must start with a dot"}
	}
	switch cfg.Templates.MissingKey {
	case "default", "zero", "error":
	default:
		return InvalidConfigError{Key: "templates.missingKey", Value: cfg.Templates.MissingKey, Reason: "must be default, zero or error"}
	}
	return nil
}

// Option configures the builder returned by [NewBuilder].
type Option func(*Builder)

// FS sets the filesystem data and templates are read from. Defaults
// to the operating system's filesystem.
func FS(fsys afero.Fs) Option {
	return func(b *Builder) {
		b.fs = fsys
	}
}

// LogOutput sets where logs are written. Defaults to [os.Stderr].
func LogOutput(w io.Writer) Option {
	return func(b *Builder) {
		b.logOut = w
	}
}

// Banner writes a startup summary to w before the server starts.
func Banner(w io.Writer) Option {
	return func(b *Builder) {
		b.banner = w
	}
}

// Listener serves on ls instead of listening on the configured address.
func Listener(ls net.Listener) Option {
	return func(b *Builder) {
		b.ls = ls
	}
}

// Builder is a [folio.AppBuilder] for [Config].
type Builder struct {
	fs     afero.Fs
	logOut io.Writer
	banner io.Writer
	ls     net.Listener
}

// NewBuilder returns a [Builder].
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		fs:     afero.NewOsFs(),
		logOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build implements the [folio.AppBuilder] interface.
func (b *Builder) Build(ctx context.Context, cfg Config) (folio.App, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	logHandler := otelslog.NewHandler(newLogHandler(b.logOut, cfg))

	loader := datactx.NewLoader(
		b.fs,
		datactx.LogHandler(logHandler),
		datactx.MaxConcurrency(cfg.Data.MaxConcurrency),
	)
	renderer := render.NewRenderer(
		b.fs,
		cfg.Templates.Dir,
		render.Extension(cfg.Templates.Extension),
		render.MissingKey(cfg.Templates.MissingKey),
		render.LogHandler(logHandler),
	)
	pages := web.NewPages(
		loader,
		cfg.Data.Dir,
		renderer,
		web.PagesLogHandler(logHandler),
	)

	opts := []web.Option{
		web.Addr(cfg.HTTP.Addr),
		web.ReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
		web.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		web.LogHandler(logHandler),
		web.Readiness(health.DirExists(b.fs, cfg.Templates.Dir)),
		web.ServePages(pages),
	}
	if b.ls != nil {
		opts = append(opts, web.Listener(b.ls))
	}

	var a folio.App = web.NewApp(opts...)
	if b.banner != nil {
		a = app.WithLifecycleHooks(a, app.Lifecycle{
			PreRun: app.LifecycleHookFunc(printBanner(b.banner, cfg)),
		})
	}
	return app.Recover(a), nil
}

func newLogHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Logging.Level <= slog.LevelDebug,
		Level:     cfg.Logging.Level,
	}
	if strings.EqualFold(cfg.Logging.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// Run builds and runs the page server until ctx is cancelled or the
// process receives SIGINT or SIGTERM. Later sources override earlier ones.
func Run(ctx context.Context, b *Builder, srcs ...config.Source) error {
	builder := appbuilder.Recover(
		appbuilder.OTel[Config](
			folio.AppBuilderFunc[Config](func(ctx context.Context, cfg Config) (folio.App, error) {
				a, err := b.Build(ctx, cfg)
				if err != nil {
					return nil, err
				}
				return app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM), nil
			}),
		),
	)
	return folio.Run(ctx, builder, srcs...)
}
