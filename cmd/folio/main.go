// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command folio serves HTML pages rendered from a templates directory
// against the JSON and text files in a data directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/z5labs/folio/config"
	"github.com/z5labs/folio/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runner is swapped out in tests.
type runner func(ctx context.Context, b *service.Builder, srcs ...config.Source) error

func main() {
	cmd := buildCmd(service.Run, os.Stdout)
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// flag name to config key chain
var flagKeys = map[string][]string{
	"addr":            {"http", "addr"},
	"data-dir":        {"data", "dir"},
	"templates-dir":   {"templates", "dir"},
	"log-level":       {"logging", "level"},
	"log-format":      {"logging", "format"},
	"max-concurrency": {"data", "maxConcurrency"},
	"otel-exporter":   {"otel", "exporter"},
}

func buildCmd(run runner, out io.Writer) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "folio",
		Short:         "Serve pages rendered from templates and data files",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs := []config.Source{service.DefaultConfig()}
			if cfgFile != "" {
				srcs = append(srcs, config.FromFile(os.DirFS(filepath.Dir(cfgFile)), filepath.Base(cfgFile)))
			}
			srcs = append(
				srcs,
				config.FromEnv(config.Prefix("FOLIO")),
				flagSource(cmd.Flags()),
			)

			err := run(cmd.Context(), service.NewBuilder(service.Banner(out)), srcs...)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "folio:", err)
			}
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfgFile, "config", "", "YAML or JSON config file layered over the defaults")
	fs.String("addr", "127.0.0.1:8080", "address to listen on")
	fs.String("data-dir", "data", "directory of JSON and text data files")
	fs.String("templates-dir", "templates", "directory containing pages/ and partial templates")
	fs.String("log-level", "INFO", "minimum log level (DEBUG, INFO, WARN, ERROR)")
	fs.String("log-format", "json", "log format (json or text)")
	fs.Int("max-concurrency", 1, "files read in parallel while loading data")
	fs.String("otel-exporter", "none", "trace exporter (none, stdout, otlp or gcp)")
	return cmd
}

// flagSource only includes flags set on the command line so that
// defaults never shadow the config file or environment.
func flagSource(fs *pflag.FlagSet) config.Map {
	m := config.Map{}
	fs.Visit(func(f *pflag.Flag) {
		chain, ok := flagKeys[f.Name]
		if !ok {
			return
		}

		var v any = f.Value.String()
		if f.Value.Type() == "int" {
			n, err := fs.GetInt(f.Name)
			if err == nil {
				v = n
			}
		}

		cur := map[string]any(m)
		for _, k := range chain[:len(chain)-1] {
			next, ok := cur[k].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[k] = next
			}
			cur = next
		}
		cur[chain[len(chain)-1]] = v
	})
	return m
}
