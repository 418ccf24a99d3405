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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("test", flag.ContinueOnError)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gmaps.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.validate())
	assert.Equal(t, 256, cfg.Workers.MaxTiles)
}

func TestParseEnv(t *testing.T) {
	cfg := &Config{}
	err := parseEnv(cfg, map[string]string{
		"GMAPS_API_KEY":                    "secret",
		"GMAPS_CACHE_LOCATION":             "mem://",
		"GMAPS_HTTP_TIMEOUT":               "3s",
		"GMAPS_HTTP_REQUESTS_PER_SECOND":   "2.5",
		"GMAPS_WORKERS_ROUTINES":           "7",
		"GMAPS_WORKERS_MAX_TILES":          "-1",
		"GMAPS_SERVER_JOB_FILTER_INTERVAL": "1m",
		"API_KEY":                          "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "mem://", cfg.Cache.Location)
	assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2.5, cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, 7, cfg.Workers.Routines)
	assert.Equal(t, -1, cfg.Workers.MaxTiles)
	assert.Equal(t, time.Minute, cfg.Server.JobFilterInterval)

	err = parseEnv(&Config{}, map[string]string{"GMAPS_HTTP_RETRIES": "many"})
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{
		"-api-key", "secret",
		"-cache", "/tmp/tiles",
		"-timeout", "2s",
		"-rps", "10",
		"-addr", ":9000",
		"-log-level", "debug",
		"-max-tiles", "1000",
		"script.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "/tmp/tiles", cfg.Cache.Location)
	assert.Equal(t, 2*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 10.0, cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.Workers.MaxTiles)
	// flags that are not given stay empty
	assert.Equal(t, 0, cfg.HTTP.Retries)

	_, err = ParseFlags(newFlagSet(), []string{"-timeout", "soon"})
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, `
api_key: from-file
cache:
  location: gs://tiles
http:
  timeout: 9s
  retries: 2
workers:
  image_cache_size: 16
server:
  address: ":9001"
  job_max_age: 2h
`)
	cfg, err := parseYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "gs://tiles", cfg.Cache.Location)
	assert.Equal(t, 9*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2, cfg.HTTP.Retries)
	assert.Equal(t, 16, cfg.Workers.ImageCacheSize)
	assert.Equal(t, ":9001", cfg.Server.Address)
	assert.Equal(t, 2*time.Hour, cfg.Server.JobMaxAge)

	_, err = parseYAML(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
	_, err = parseYAML(writeConfig(t, "http: [1, 2"))
	assert.Error(t, err)
}

func TestBuilderPrecedence(t *testing.T) {
	path := writeConfig(t, `
api_key: from-file
http:
  timeout: 9s
  retries: 2
server:
  address: ":9001"
`)
	cfg, err := newConfigBuilder().
		withDefaults().
		withEnv(map[string]string{
			"GMAPS_CONFIG":       path,
			"GMAPS_API_KEY":      "from-env",
			"GMAPS_HTTP_RETRIES": "5",
		}).
		withFlags(newFlagSet(), []string{"-retries", "7"}).
		withFile().
		build()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	// flags > env > file > defaults
	assert.Equal(t, 7, cfg.HTTP.Retries)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, 9*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, ":9001", cfg.Server.Address)
	assert.Equal(t, Default().HTTP.BaseURL, cfg.HTTP.BaseURL)
	assert.Equal(t, Default().Server.JobMaxAge, cfg.Server.JobMaxAge)
}

func TestBuilderErrors(t *testing.T) {
	_, err := newConfigBuilder().
		withDefaults().
		withEnv(map[string]string{"GMAPS_CONFIG": filepath.Join(t.TempDir(), "missing.yml")}).
		withFile().
		build()
	assert.Error(t, err)

	_, err = newConfigBuilder().
		withDefaults().
		withEnv(map[string]string{}).
		withFlags(newFlagSet(), []string{"-unknown"}).
		build()
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("GMAPS_LOG_LEVEL", "debug")
	t.Setenv("GMAPS_CACHE_LOCATION", "mem://")
	cfg, err := Load(newFlagSet(), []string{"-routines", "3"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mem://", cfg.Cache.Location)
	assert.Equal(t, 3, cfg.Workers.Routines)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(cfg *Config)
		expected error
	}{
		{"log level", func(cfg *Config) { cfg.LogLevel = "loud" }, ErrInvalidConfig},
		{"retries", func(cfg *Config) { cfg.HTTP.Retries = 21 }, ErrInvalidConfig},
		{"base url", func(cfg *Config) { cfg.HTTP.BaseURL = "not a url" }, ErrInvalidConfig},
		{"negative rps", func(cfg *Config) { cfg.HTTP.RequestsPerSecond = -1 }, ErrInvalidConfig},
		{"max tiles", func(cfg *Config) { cfg.Workers.MaxTiles = -2 }, ErrInvalidConfig},
		{"cache", func(cfg *Config) { cfg.Cache.Location = "" }, ErrInvalidCacheConfigs},
		{"timeout", func(cfg *Config) { cfg.HTTP.Timeout = 0 }, ErrInvalidHTTPConfigs},
		{"address", func(cfg *Config) { cfg.Server.Address = "" }, ErrInvalidServerConfigs},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.expected), err.Error())
		})
	}
}

func TestSetupLogging(t *testing.T) {
	before := log.GetLevel()
	defer log.SetLevel(before)

	require.NoError(t, (&Config{LogLevel: "warn"}).SetupLogging())
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	// no level keeps the current one
	require.NoError(t, (&Config{}).SetupLogging())
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	assert.Error(t, (&Config{LogLevel: "loud"}).SetupLogging())
}
