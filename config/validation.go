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
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Validation errors returned by Load when the merged configuration is
// invalid.
var (
	// ErrInvalidConfig wraps field errors reported by the struct tags.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidCacheConfigs indicates a missing cache location.
	ErrInvalidCacheConfigs = errors.New("invalid cache configuration")
	// ErrInvalidHTTPConfigs indicates invalid client settings (for example a
	// missing endpoint or timeout).
	ErrInvalidHTTPConfigs = errors.New("invalid http configuration")
	// ErrInvalidServerConfigs indicates invalid server settings.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
)

var structValidator = validator.New()

// validate checks the merged configuration.
func (cfg *Config) validate() error {
	if err := structValidator.Struct(cfg); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid configuration"), ErrInvalidConfig)
	}
	if cfg.Cache.Location == "" {
		return ErrInvalidCacheConfigs
	}
	if cfg.HTTP.BaseURL == "" || cfg.HTTP.Timeout == 0 {
		return ErrInvalidHTTPConfigs
	}
	if cfg.Server.Address == "" || cfg.Server.JobMaxAge == 0 {
		return ErrInvalidServerConfigs
	}
	return nil
}
