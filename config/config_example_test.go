// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"
)

func ExampleRead() {
	base := FromYaml(strings.NewReader(`
templates:
  dir: templates
data:
  dir: data
`))
	env := FromEnv(
		Prefix("FOLIO"),
		Environ(func() []string {
			return []string{"FOLIO_DATA_DIR=/srv/site/data"}
		}),
	)

	m, err := Read(base, env)
	if err != nil {
		fmt.Println(err)
		return
	}

	var cfg struct {
		Templates struct {
			Dir string `config:"dir"`
		} `config:"templates"`
		Data struct {
			Dir string `config:"dir"`
		} `config:"data"`
	}
	err = m.Unmarshal(&cfg)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(cfg.Templates.Dir)
	fmt.Println(cfg.Data.Dir)
	// Output: templates
	// /srv/site/data
}
