// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"flag"

	"dario.cat/mergo"
	"github.com/cockroachdb/errors"
)

// configBuilder collects the configuration layers. The file layer is read
// last (its path may be given by env or flags) but has a lower priority than
// both.
type configBuilder struct {
	defaults *Config
	file     *Config
	env      *Config
	flags    *Config
	err      error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{}
}

func (b *configBuilder) layers() []*Config {
	res := make([]*Config, 0, 4)
	for _, cfg := range []*Config{b.defaults, b.file, b.env, b.flags} {
		if cfg != nil {
			res = append(res, cfg)
		}
	}
	return res
}

func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, errors.Wrap(b.err, "error occurred during building config")
	}

	config := new(Config)
	for _, cfg := range b.layers() {
		if err := mergo.Merge(config, cfg, mergo.WithOverride); err != nil {
			return nil, errors.Wrap(err, "error merging configs")
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.defaults = Default()
	return b
}

// withEnv reads the environment, environ replaces the process environment if
// not nil.
func (b *configBuilder) withEnv(environ map[string]string) *configBuilder {
	envCfg := &Config{}
	if err := parseEnv(envCfg, environ); err != nil {
		b.err = errors.CombineErrors(b.err, err)
		return b
	}
	b.env = envCfg
	return b
}

func (b *configBuilder) withFlags(fs *flag.FlagSet, args []string) *configBuilder {
	flagsCfg, err := ParseFlags(fs, args)
	if err != nil {
		b.err = errors.CombineErrors(b.err, err)
		return b
	}
	b.flags = flagsCfg
	return b
}

func (b *configBuilder) withFile() *configBuilder {
	var path string
	for _, cfg := range []*Config{b.env, b.flags} {
		if cfg != nil && cfg.ConfigFile != "" {
			path = cfg.ConfigFile
		}
	}
	if path == "" {
		return b
	}
	fileCfg, err := parseYAML(path)
	if err != nil {
		b.err = errors.CombineErrors(b.err, err)
		return b
	}
	fileCfg.ConfigFile = path
	b.file = fileCfg
	return b
}
