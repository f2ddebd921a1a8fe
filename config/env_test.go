// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/z5labs/folio/config/key"

	"github.com/stretchr/testify/assert"
)

func environ(pairs ...string) EnvOption {
	return Environ(func() []string {
		return pairs
	})
}

func TestEnv_Apply(t *testing.T) {
	t.Run("will set top level keys", func(t *testing.T) {
		t.Run("if no prefix is configured", func(t *testing.T) {
			var keys []string
			store := storeFunc(func(k key.Keyer, a any) error {
				keys = append(keys, k.Key())
				return nil
			})

			err := FromEnv(environ("HOME=/root", "malformed")).Apply(store)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, []string{"HOME"}, keys) {
				return
			}
		})
	})

	t.Run("will nest keys", func(t *testing.T) {
		t.Run("if a prefix is configured", func(t *testing.T) {
			m, err := Read(FromEnv(
				Prefix("FOLIO"),
				environ("FOLIO_HTTP_ADDR=:8080", "OTHER_HTTP_ADDR=:9090", "FOLIO_=ignored"),
			))
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Http struct {
					Addr string `config:"addr"`
				} `config:"http"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, ":8080", cfg.Http.Addr) {
				return
			}
		})
	})

	t.Run("will override yaml values", func(t *testing.T) {
		t.Run("if the yaml key uses a different casing", func(t *testing.T) {
			m, err := Read(
				FromYaml(strings.NewReader("data:\n  maxConcurrency: 1\n")),
				FromEnv(Prefix("FOLIO"), environ("FOLIO_DATA_MAXCONCURRENCY=8")),
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Data struct {
					MaxConcurrency int `config:"maxConcurrency"`
				} `config:"data"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, 8, cfg.Data.MaxConcurrency) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the store fails to set a key", func(t *testing.T) {
			setErr := errors.New("failed to set key")
			store := storeFunc(func(k key.Keyer, a any) error {
				return setErr
			})

			err := FromEnv(Prefix("FOLIO"), environ("FOLIO_HTTP_ADDR=:80")).Apply(store)
			if !assert.ErrorIs(t, err, setErr) {
				return
			}
		})
	})
}

func TestManager_Unmarshal_slogLevel(t *testing.T) {
	t.Run("will unmarshal slog.Level", func(t *testing.T) {
		t.Run("if the level is provided as text", func(t *testing.T) {
			m, err := Read(Map{"logging": map[string]any{"level": "WARN"}})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Logging struct {
					Level slog.Level `config:"level"`
				} `config:"logging"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, slog.LevelWarn, cfg.Logging.Level) {
				return
			}
		})
	})
}
