// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package configtmpl provides functions for use in config templates
// rendered by [config.RenderTextTemplate].
package configtmpl

import (
	"os"
	"reflect"
	"strings"
	"text/template"
)

// Funcs returns every function in this package keyed by the name
// it should be registered under in a config template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"env":     Env,
		"default": Default,
	}
}

// Env returns the environment variable value for the given key
// or an empty string, if the environment variable does not exist.
func Env(key string) string {
	return lookup(os.Environ(), key)
}

func lookup(pairs []string, key string) string {
	v := ""
	for _, s := range pairs {
		k, value, ok := strings.Cut(s, "=")
		if !ok || k != key {
			continue
		}
		// later duplicates win, same as os.Getenv on most platforms
		v = value
	}
	return v
}

// Default returns the provided def value if v is either nil or the zero value for its type.
func Default(def, v any) any {
	if v == nil {
		return def
	}
	val := reflect.ValueOf(v)
	if val.IsZero() {
		return def
	}
	return v
}
