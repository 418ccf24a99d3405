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

package gmapsimage

import (
	"context"
	"os"
	"strings"

	"github.com/FabianWe/gmapsimage/config"
	"github.com/cockroachdb/errors"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

// Service bundles everything required to construct images: the tile cache,
// the API client and an in-memory cache of decoded tiles.
type Service struct {
	Cache       TileCache
	Client      *StaticMapsClient
	Fetcher     Fetcher
	Images      *ImageCache
	NumRoutines int

	// MaxTiles limits the size of constructed images, see CheckTileLimit.
	MaxTiles int
}

// NewService returns a service that reads tiles from cache and requests
// missing tiles with client.
func NewService(cache TileCache, client *StaticMapsClient, numRoutines, imageCacheSize int) *Service {
	if imageCacheSize <= 0 {
		imageCacheSize = ImageCacheSize
	}
	return &Service{
		Cache:       cache,
		Client:      client,
		Fetcher:     NewCachedFetcher(cache, client),
		Images:      NewImageCache(imageCacheSize),
		NumRoutines: numRoutines,
	}
}

// OpenService opens the cache configured in cfg and creates a client. The
// API key is taken from (in this order) cfg.APIKey, cfg.APIKeyFile and the
// file api_key.txt in the cache. A missing key is not an error, images in the
// cache can still be used.
func OpenService(ctx context.Context, cfg *config.Config) (*Service, error) {
	cache, err := OpenTileCache(ctx, cfg.Cache.Location)
	if err != nil {
		return nil, err
	}
	client := NewStaticMapsClient(ClientOptions{
		BaseURL:           cfg.HTTP.BaseURL,
		Timeout:           cfg.HTTP.Timeout,
		Retries:           cfg.HTTP.Retries,
		RetryDelay:        cfg.HTTP.RetryDelay,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	key, keyErr := resolveAPIKey(ctx, cfg, cache)
	switch {
	case keyErr != nil && !errors.Is(keyErr, ErrCacheMiss) && !errors.Is(keyErr, ErrMissingAPIKey):
		cache.Close()
		return nil, keyErr
	case key == "":
		log.Warn("No API key found, only cached images can be used")
	default:
		client.SetAPIKey(key)
	}
	service := NewService(cache, client, cfg.Workers.Routines, cfg.Workers.ImageCacheSize)
	service.MaxTiles = cfg.Workers.MaxTiles
	return service, nil
}

func resolveAPIKey(ctx context.Context, cfg *config.Config, cache TileCache) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyFile != "" {
		path, err := homedir.Expand(cfg.APIKeyFile)
		if err != nil {
			return "", errors.Wrap(err, "can't read API key file")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "can't read API key file %s", path)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return ReadAPIKey(ctx, cache)
}

// Options returns construction options using the service's routines and
// image cache.
func (s *Service) Options(zoom, scale int) Options {
	return Options{
		Zoom:        zoom,
		Scale:       scale,
		NumRoutines: s.NumRoutines,
		MaxTiles:    s.MaxTiles,
		Cache:       s.Images,
	}
}

// Construct works as the function Construct with the service's fetcher.
func (s *Service) Construct(ctx context.Context, area Area, opts Options) (*Result, error) {
	s.fillOptions(&opts)
	return Construct(ctx, s.Fetcher, area, opts)
}

// GetImage works as the function GetImage with the service's fetcher.
func (s *Service) GetImage(ctx context.Context, r GetImageRequest) (*Result, error) {
	opts := Options{}
	s.fillOptions(&opts)
	return GetImage(ctx, s.Fetcher, r, opts)
}

func (s *Service) fillOptions(opts *Options) {
	if opts.NumRoutines <= 0 {
		opts.NumRoutines = s.NumRoutines
	}
	if opts.MaxTiles == 0 {
		opts.MaxTiles = s.MaxTiles
	}
	if opts.Cache == nil {
		opts.Cache = s.Images
	}
}

// Close closes the cache.
func (s *Service) Close() error {
	return s.Cache.Close()
}
