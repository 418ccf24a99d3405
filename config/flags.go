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

	"github.com/cockroachdb/errors"
)

// ParseFlags registers all configuration flags on fs and parses args.
// Flags that are not given keep their zero value and thus don't override
// other sources.
//
// Flags:
//
//	-c / -config   YAML config file
//	-api-key       Static Maps API key
//	-api-key-file  file containing the API key
//	-cache         cache directory or blob url
//	-base-url      Static Maps endpoint
//	-timeout       request timeout (e.g. 5s)
//	-retries       attempts per image
//	-retry-delay   delay between attempts
//	-rps           requests per second (0 = unlimited)
//	-burst         rate limiter burst
//	-routines      concurrently processed tiles
//	-image-cache   number of decoded tiles kept in memory
//	-max-tiles     maximal number of tiles per image (-1 = unlimited)
//	-addr          server address
//	-job-max-age   time finished jobs are kept
//	-log-level     logrus level
func ParseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	fs.StringVar(&cfg.ConfigFile, "c", "", "YAML config file")
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML config file (alias)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "Static Maps API key")
	fs.StringVar(&cfg.APIKeyFile, "api-key-file", "", "File containing the Static Maps API key")
	fs.StringVar(&cfg.Cache.Location, "cache", "", "Cache directory or blob url (mem://, gs://bucket)")
	fs.StringVar(&cfg.HTTP.BaseURL, "base-url", "", "Static Maps endpoint")
	fs.DurationVar(&cfg.HTTP.Timeout, "timeout", 0, "Request timeout (e.g. 5s)")
	fs.IntVar(&cfg.HTTP.Retries, "retries", 0, "Attempts per image")
	fs.DurationVar(&cfg.HTTP.RetryDelay, "retry-delay", 0, "Delay between attempts")
	fs.Float64Var(&cfg.HTTP.RequestsPerSecond, "rps", 0, "Requests per second, 0 means no limit")
	fs.IntVar(&cfg.HTTP.Burst, "burst", 0, "Rate limiter burst")
	fs.IntVar(&cfg.Workers.Routines, "routines", 0, "Number of tiles processed concurrently")
	fs.IntVar(&cfg.Workers.ImageCacheSize, "image-cache", 0, "Number of decoded tiles kept in memory")
	fs.IntVar(&cfg.Workers.MaxTiles, "max-tiles", 0, "Maximal number of tiles per image, -1 means no limit")
	fs.StringVar(&cfg.Server.Address, "addr", "", "Server address host:port")
	fs.DurationVar(&cfg.Server.JobMaxAge, "job-max-age", 0, "Time finished jobs are kept")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "error parsing flags")
	}
	return cfg, nil
}
