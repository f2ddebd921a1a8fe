// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"

	"github.com/z5labs/folio/config/key"
)

// UnknownKeyerError is returned for a [key.Keyer] which is neither a
// [key.Name] nor a [key.Chain].
type UnknownKeyerError struct {
	key key.Keyer
}

// Error implements the [builtin.error] interface.
func (e UnknownKeyerError) Error() string {
	return fmt.Sprintf("unsupported key type %T: %s", e.key, e.key.Key())
}

// EmptyKeyChainError is returned when a value is set without a key.
type EmptyKeyChainError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e EmptyKeyChainError) Error() string {
	return fmt.Sprintf("can not set %v without a key", e.Value)
}

// UnexpectedKeyValueTypeError is returned when a nested key is set
// beneath a key which already holds a leaf value.
type UnexpectedKeyValueTypeError struct {
	Key          string
	ExpectedType string
}

// Error implements the [builtin.error] interface.
func (e UnexpectedKeyValueTypeError) Error() string {
	return fmt.Sprintf("expected %s to hold a %s", e.Key, e.ExpectedType)
}

// inMemoryStore is a tree of maps keyed by lower cased names.
type inMemoryStore map[string]any

func (m inMemoryStore) Set(k key.Keyer, v any) error {
	var chain key.Chain
	switch x := k.(type) {
	case key.Name:
		chain = key.Chain{x}
	case key.Chain:
		chain = x
	default:
		return UnknownKeyerError{key: k}
	}
	if len(chain) == 0 {
		return EmptyKeyChainError{Value: v}
	}

	node := map[string]any(m)
	for _, k := range chain[:len(chain)-1] {
		name := strings.ToLower(k.Key())
		child, exists := node[name]
		if !exists {
			child = make(map[string]any)
			node[name] = child
		}

		next, ok := child.(map[string]any)
		if !ok {
			return UnexpectedKeyValueTypeError{
				Key:          k.Key(),
				ExpectedType: "map[string]any",
			}
		}
		node = next
	}

	node[strings.ToLower(chain[len(chain)-1].Key())] = v
	return nil
}
