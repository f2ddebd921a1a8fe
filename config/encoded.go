// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/z5labs/folio/internal/try"

	"gopkg.in/yaml.v3"
)

// Yaml is a [Source] read from a YAML document.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a [Source] which decodes r as a YAML mapping.
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// InvalidYamlError is returned when a YAML source is malformed.
type InvalidYamlError struct {
	cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("invalid yaml: %s", e.cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.cause
}

// Apply implements the [Source] interface.
func (src Yaml) Apply(store Store) error {
	return applyEncoded(store, src.r, yaml.Unmarshal, func(err error) error {
		return InvalidYamlError{cause: err}
	})
}

// Json is a [Source] read from a JSON object.
type Json struct {
	r io.Reader
}

// FromJson returns a [Source] which decodes r as a JSON object.
func FromJson(r io.Reader) Json {
	return Json{r: r}
}

// InvalidJsonError is returned when a JSON source is malformed.
type InvalidJsonError struct {
	cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidJsonError) Error() string {
	return fmt.Sprintf("invalid json: %s", e.cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidJsonError) Unwrap() error {
	return e.cause
}

// Apply implements the [Source] interface.
func (src Json) Apply(store Store) error {
	return applyEncoded(store, src.r, json.Unmarshal, func(err error) error {
		return InvalidJsonError{cause: err}
	})
}

// applyEncoded reads all of r, closing it if possible, and sets every
// decoded leaf on store.
func applyEncoded(store Store, r io.Reader, unmarshal func([]byte, any) error, invalid func(error) error) (err error) {
	defer try.Close(&err, r)

	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	var m map[string]any
	err = unmarshal(b, &m)
	if err != nil {
		return invalid(err)
	}
	return Map(m).Apply(store)
}
