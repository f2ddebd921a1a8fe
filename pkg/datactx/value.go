// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package datactx loads a directory tree of data files into a hierarchical
// document which templates are rendered against.
//
// Subdirectories become nested objects keyed by their name, ".json" files
// are parsed and keyed by their stem and ".txt" files are kept verbatim,
// also keyed by their stem. Every other file is ignored.
package datactx

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// Value is one of [Object], [String] or [JSON].
type Value interface {
	isValue()
}

// Document maps keys derived from file and directory names to their values.
type Document map[string]Value

// Object is a nested document loaded from a subdirectory.
type Object Document

// String holds the unmodified contents of a ".txt" file.
type String string

// JSON holds the decoded contents of a ".json" file. Value is one of
// map[string]any, []any, json.Number, string, bool or nil.
type JSON struct {
	Value any
}

func (Object) isValue() {}
func (String) isValue() {}
func (JSON) isValue()   {}

// Data converts d into plain Go values suitable for use as template data.
// Objects become map[string]any and strings become string. JSON numbers
// become int64 or float64 when that conversion is exact and otherwise
// stay a [json.Number]. d itself is never modified.
func (d Document) Data() map[string]any {
	m := make(map[string]any, len(d))
	for k, v := range d {
		m[k] = data(v)
	}
	return m
}

func data(v Value) any {
	switch x := v.(type) {
	case Object:
		return Document(x).Data()
	case String:
		return string(x)
	case JSON:
		return plain(x.Value)
	default:
		panic(fmt.Sprintf("datactx: unknown value type %T", v))
	}
}

func plain(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = plain(e)
		}
		return m
	case []any:
		xs := make([]any, len(x))
		for i, e := range x {
			xs[i] = plain(e)
		}
		return xs
	case json.Number:
		return number(x)
	default:
		return v
	}
}

// 256 bits is enough to tell a float64 apart from a longer decimal.
const numberPrec = 256

func number(n json.Number) any {
	i, err := n.Int64()
	if err == nil {
		return i
	}

	f, err := n.Float64()
	if err != nil {
		return n
	}

	want, _, err := big.ParseFloat(n.String(), 10, numberPrec, big.ToNearestEven)
	if err != nil {
		return n
	}
	got, _, err := big.ParseFloat(strconv.FormatFloat(f, 'g', -1, 64), 10, numberPrec, big.ToNearestEven)
	if err != nil || want.Cmp(got) != 0 {
		return n
	}
	return f
}
