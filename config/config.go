// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides layered configuration sources which are merged
// into a single key value store and then decoded into a user defined struct.
//
// Struct fields are matched using the "config" tag. Keys are case-insensitive
// so a value set from an environment variable overrides the same value
// set from a YAML file regardless of casing.
package config

import (
	"encoding"
	"fmt"
	"reflect"
	"time"

	"github.com/z5labs/folio/config/key"

	"github.com/mitchellh/mapstructure"
)

// Store represents a general key value structure.
type Store interface {
	Set(key.Keyer, any) error
}

// Source defines valid config sources as those who can
// serialize themselves into a key value like structure.
type Source interface {
	Apply(Store) error
}

// Manager holds the merged result of one or more [Source]s.
type Manager struct {
	store inMemoryStore
}

// Read applies every source, in order, to a fresh store.
// Subsequent sources override previous sources.
func Read(srcs ...Source) (*Manager, error) {
	store := make(inMemoryStore)
	for _, src := range srcs {
		err := src.Apply(store)
		if err != nil {
			return nil, err
		}
	}
	m := &Manager{
		store: store,
	}
	return m, nil
}

// Apply implements the [Source] interface so a [Manager] can
// be layered underneath other sources.
func (m *Manager) Apply(store Store) error {
	return Map(m.store).Apply(store)
}

// Unmarshal decodes the merged config into v, which must be a non-nil pointer.
//
// Strings are converted with [encoding.TextUnmarshaler] when the target
// implements it and durations may be given as strings, e.g. "5s", or as
// integer nanoseconds.
func (m *Manager) Unmarshal(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           v,
		DecodeHook:       mapstructure.DecodeHookFuncValue(coerce),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(m.store))
}

// TypeCoercionError occurs when a config value can not be converted
// to the type of the struct field it is decoded into.
type TypeCoercionError struct {
	from  reflect.Value
	to    reflect.Value
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TypeCoercionError) Error() string {
	return fmt.Sprintf("failed to coerce value from %s to %s: %s", e.from.Type(), e.to.Type(), e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TypeCoercionError) Unwrap() error {
	return e.Cause
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func coerce(from, to reflect.Value) (any, error) {
	v, err := convert(from, to.Type())
	if err != nil {
		return nil, TypeCoercionError{from: from, to: to, Cause: err}
	}
	return v, nil
}

func convert(from reflect.Value, to reflect.Type) (any, error) {
	if to == durationType {
		switch from.Kind() {
		case reflect.String:
			return time.ParseDuration(from.String())
		case reflect.Int:
			return time.Duration(from.Int()), nil
		}
	}

	if from.Kind() == reflect.String && reflect.PointerTo(to).Implements(textUnmarshalerType) {
		ptr := reflect.New(to)
		err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(from.String()))
		if err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}
	return from.Interface(), nil
}
