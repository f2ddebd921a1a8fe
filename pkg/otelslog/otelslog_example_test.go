// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelslog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
)

func ExampleHandler_WithAttrs() {
	var buf bytes.Buffer
	var h slog.Handler = NewHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))
	h = h.WithAttrs([]slog.Attr{slog.String("request_id", "b7c1")})

	logger := slog.New(h)
	logger.Info("rendered page")

	var record struct {
		Message   string `json:"msg"`
		RequestID string `json:"request_id"`
	}
	err := json.Unmarshal(buf.Bytes(), &record)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(record.Message)
	fmt.Print(record.RequestID)
	// Output: rendered page
	// b7c1
}

func ExampleHandler_WithGroup() {
	var buf bytes.Buffer
	var h slog.Handler = NewHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{}))
	h = h.WithGroup("datactx")

	logger := slog.New(h)
	logger.Info("loaded data directory", slog.Int("skipped", 1))

	var record struct {
		Message string `json:"msg"`
		Datactx struct {
			Skipped int `json:"skipped"`
		} `json:"datactx"`
	}
	err := json.Unmarshal(buf.Bytes(), &record)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(record.Message)
	fmt.Print(record.Datactx.Skipped)
	// Output: loaded data directory
	// 1
}
