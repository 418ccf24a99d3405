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

// Package config loads the configuration of the gmapsimage tools.
//
// Values are read from (in increasing priority) built-in defaults, a YAML
// file, environment variables with prefix GMAPS_ and command line flags.
package config

import (
	"flag"
	"time"
)

// EnvPrefix is the prefix of all environment variables.
const EnvPrefix = "GMAPS_"

// Config is the configuration of the gmapsimage tools.
type Config struct {
	// APIKey is the Static Maps API key. If empty the key is read from
	// APIKeyFile and then from the file api_key.txt in the cache.
	// Env: GMAPS_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`

	// APIKeyFile is a file containing the API key.
	// Env: GMAPS_API_KEY_FILE
	APIKeyFile string `yaml:"api_key_file" env:"API_KEY_FILE"`

	Cache   Cache   `yaml:"cache" envPrefix:"CACHE_"`
	HTTP    HTTP    `yaml:"http" envPrefix:"HTTP_"`
	Workers Workers `yaml:"workers" envPrefix:"WORKERS_"`
	Server  Server  `yaml:"server" envPrefix:"SERVER_"`

	// LogLevel is a logrus level name.
	// Env: GMAPS_LOG_LEVEL
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	// ConfigFile is the YAML file read by Load.
	// Env: GMAPS_CONFIG
	ConfigFile string `yaml:"-" env:"CONFIG"`
}

// Cache configures the tile cache.
type Cache struct {
	// Location is a directory or a gocloud blob url (mem://, file://, gs://).
	// Env: GMAPS_CACHE_LOCATION
	Location string `yaml:"location" env:"LOCATION"`
}

// HTTP configures the Static Maps client.
type HTTP struct {
	// Env: GMAPS_HTTP_BASE_URL
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"omitempty,url"`
	// Env: GMAPS_HTTP_TIMEOUT
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
	// Retries is the number of attempts per image.
	// Env: GMAPS_HTTP_RETRIES
	Retries int `yaml:"retries" env:"RETRIES" validate:"gte=0,lte=20"`
	// Env: GMAPS_HTTP_RETRY_DELAY
	RetryDelay time.Duration `yaml:"retry_delay" env:"RETRY_DELAY" validate:"gte=0"`
	// RequestsPerSecond limits the request rate, 0 means no limit.
	// Env: GMAPS_HTTP_REQUESTS_PER_SECOND
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND" validate:"gte=0"`
	// Env: GMAPS_HTTP_BURST
	Burst int `yaml:"burst" env:"BURST" validate:"gte=0"`
}

// Workers configures concurrency during image construction.
type Workers struct {
	// Routines is the number of tiles processed concurrently, 0 means twice
	// the number of CPUs.
	// Env: GMAPS_WORKERS_ROUTINES
	Routines int `yaml:"routines" env:"ROUTINES" validate:"gte=0"`
	// ImageCacheSize is the number of decoded tiles kept in memory.
	// Env: GMAPS_WORKERS_IMAGE_CACHE_SIZE
	ImageCacheSize int `yaml:"image_cache_size" env:"IMAGE_CACHE_SIZE" validate:"gte=0"`
	// MaxTiles is the number of scale 1 tiles a single image may consist of,
	// a tile of scale s counts s² times. -1 disables the limit.
	// Env: GMAPS_WORKERS_MAX_TILES
	MaxTiles int `yaml:"max_tiles" env:"MAX_TILES" validate:"gte=-1"`
}

// Server configures the HTTP server.
type Server struct {
	// Env: GMAPS_SERVER_ADDRESS
	Address string `yaml:"address" env:"ADDRESS"`
	// JobMaxAge is the time finished jobs are kept.
	// Env: GMAPS_SERVER_JOB_MAX_AGE
	JobMaxAge time.Duration `yaml:"job_max_age" env:"JOB_MAX_AGE" validate:"gte=0"`
	// JobFilterInterval is the interval in which expired jobs are removed.
	// Env: GMAPS_SERVER_JOB_FILTER_INTERVAL
	JobFilterInterval time.Duration `yaml:"job_filter_interval" env:"JOB_FILTER_INTERVAL" validate:"gte=0"`
}

// Default returns the configuration used for values not set elsewhere.
func Default() *Config {
	return &Config{
		Cache: Cache{
			Location: "~/.cache/gmaps-image/",
		},
		HTTP: HTTP{
			BaseURL:    "https://maps.googleapis.com/maps/api/staticmap",
			Timeout:    5 * time.Second,
			Retries:    3,
			RetryDelay: 200 * time.Millisecond,
			Burst:      1,
		},
		Workers: Workers{
			ImageCacheSize: 64,
			MaxTiles:       256,
		},
		Server: Server{
			Address:           ":8085",
			JobMaxAge:         time.Hour,
			JobFilterInterval: time.Minute,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the YAML file, the environment
// and the flags in args. Flags are registered on fs, which must not have been
// parsed yet.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	return newConfigBuilder().
		withDefaults().
		withEnv(nil).
		withFlags(fs, args).
		withFile().
		build()
}
