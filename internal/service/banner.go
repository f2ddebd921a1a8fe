// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"io"

	"github.com/fatih/color"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	cyan  = color.New(color.FgCyan)
	faint = color.New(color.Faint)
)

// printBanner writes the startup summary shown before the server
// begins accepting connections.
func printBanner(w io.Writer, cfg Config) func(context.Context) error {
	return func(ctx context.Context) error {
		rows := []struct {
			label string
			value string
			c     *color.Color
		}{
			{label: "Server starting on", value: "http://" + cfg.HTTP.Addr, c: green},
			{label: "Templates directory:", value: cfg.Templates.Dir, c: cyan},
			{label: "Data directory:", value: cfg.Data.Dir, c: cyan},
		}

		_, err := bold.Fprintln(w, "folio")
		if err != nil {
			return err
		}
		for _, row := range rows {
			_, err = io.WriteString(w, row.label+" ")
			if err != nil {
				return err
			}
			_, err = row.c.Fprintln(w, row.value)
			if err != nil {
				return err
			}
		}
		_, err = faint.Fprintln(w, "Templates and data files are reloaded on every request")
		return err
	}
}
