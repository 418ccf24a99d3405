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
	"image"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/singleflight"

	// url openers for OpenTileCache
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
)

const (
	// DefaultCacheLocation is the directory used if no other cache is
	// configured.
	DefaultCacheLocation = "~/.cache/gmaps-image/"

	// APIKeyFile is the name of the file in the cache containing the API key.
	APIKeyFile = "api_key.txt"
)

var (
	// ImageCacheSize is the default number of decoded tiles kept in memory
	// during image construction.
	ImageCacheSize = 64

	// ErrCacheMiss is returned by a TileCache if the key does not exist.
	ErrCacheMiss = errors.New("not found in tile cache")
)

// CacheEntry describes an image stored in a TileCache.
type CacheEntry struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// TileCache stores encoded images by their cache key (see Request.CacheKey).
//
// Implementations must be safe for concurrent use.
type TileCache interface {
	// Get returns the stored data or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores (or replaces) data.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes an entry, deleting a non existing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all images in the cache sorted by key.
	List(ctx context.Context) ([]CacheEntry, error)

	Close() error
}

// BlobCache is a TileCache backed by a gocloud blob bucket.
type BlobCache struct {
	bucket *blob.Bucket
}

// NewBlobCache returns a cache using the bucket. The bucket is closed when
// the cache is closed.
func NewBlobCache(bucket *blob.Bucket) *BlobCache {
	return &BlobCache{bucket: bucket}
}

// OpenTileCache opens the cache at location. location is either a path on
// the filesystem (~ is expanded to the home directory, the directory is
// created if required) or a gocloud url like mem://, file:///path or
// gs://bucket. The empty string opens DefaultCacheLocation.
func OpenTileCache(ctx context.Context, location string) (*BlobCache, error) {
	if location == "" {
		location = DefaultCacheLocation
	}
	if strings.Contains(location, "://") {
		bucket, err := blob.OpenBucket(ctx, location)
		if err != nil {
			return nil, errors.Wrapf(err, "can't open tile cache %s", location)
		}
		return NewBlobCache(bucket), nil
	}
	dir, err := homedir.Expand(location)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open tile cache %s", location)
	}
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, errors.Wrapf(err, "can't open tile cache %s", dir)
	}
	log.WithField("dir", dir).Debug("Opened tile cache")
	return NewBlobCache(bucket), nil
}

// Get implements TileCache.
func (c *BlobCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrCacheMiss
		}
		return nil, errors.Wrapf(err, "can't read %s from tile cache", key)
	}
	return data, nil
}

// Put implements TileCache.
func (c *BlobCache) Put(ctx context.Context, key string, data []byte) error {
	opts := &blob.WriterOptions{ContentType: "image/png"}
	if err := c.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return errors.Wrapf(err, "can't write %s to tile cache", key)
	}
	return nil
}

// Delete implements TileCache.
func (c *BlobCache) Delete(ctx context.Context, key string) error {
	err := c.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return errors.Wrapf(err, "can't delete %s from tile cache", key)
	}
	return nil
}

// List implements TileCache. Only entries with a valid cache key are listed,
// so the API key file and unrelated files are skipped.
func (c *BlobCache) List(ctx context.Context) ([]CacheEntry, error) {
	res := make([]CacheEntry, 0)
	iter := c.bucket.List(&blob.ListOptions{Prefix: "image_"})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "can't list tile cache")
		}
		if obj.IsDir {
			continue
		}
		if _, parseErr := ParseCacheKey(obj.Key); parseErr != nil {
			continue
		}
		res = append(res, CacheEntry{Key: obj.Key, Size: obj.Size, ModTime: obj.ModTime})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}

// Close implements TileCache.
func (c *BlobCache) Close() error {
	return c.bucket.Close()
}

// ReadAPIKey reads the API key stored in the cache (api_key.txt). Whitespace
// around the key is removed.
func ReadAPIKey(ctx context.Context, cache TileCache) (string, error) {
	data, err := cache.Get(ctx, APIKeyFile)
	if err != nil {
		return "", errors.Wrapf(err, "can't read API key from %s", APIKeyFile)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", errors.Wrapf(ErrMissingAPIKey, "%s is empty", APIKeyFile)
	}
	return key, nil
}

// CachedFetcher is a Fetcher that looks up images in a cache first and only
// calls the underlying Fetcher if the image is not in the cache. Fetched
// images are added to the cache.
//
// Concurrent requests for the same image result in only one call to the
// underlying Fetcher.
type CachedFetcher struct {
	Cache   TileCache
	Fetcher Fetcher
	group   singleflight.Group
}

// NewCachedFetcher returns a new read-through fetcher.
func NewCachedFetcher(cache TileCache, fetcher Fetcher) *CachedFetcher {
	return &CachedFetcher{Cache: cache, Fetcher: fetcher}
}

// Fetch implements Fetcher.
//
// Concurrent calls for the same image share one download. The download is
// not bound to the cancellation of the caller that started it, a canceled
// caller returns ctx.Err() while the others still receive the image.
func (f *CachedFetcher) Fetch(ctx context.Context, r Request) ([]byte, error) {
	key := r.CacheKey()
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (interface{}, error) {
		ctx := shared
		data, getErr := f.Cache.Get(ctx, key)
		switch {
		case getErr == nil:
			cacheHits.Inc()
			return data, nil
		case !errors.Is(getErr, ErrCacheMiss):
			return nil, getErr
		}
		cacheMisses.Inc()
		log.WithField("key", key).Info("Image not in cache, fetching")
		data, fetchErr := f.Fetcher.Fetch(ctx, r)
		if fetchErr != nil {
			return nil, fetchErr
		}
		if putErr := f.Cache.Put(ctx, key, data); putErr != nil {
			// the image is still usable
			log.WithError(putErr).WithField("key", key).Warn("Can't store image in cache")
		}
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// ImageCache keeps decoded images in memory, the least recently used image
// is removed if the cache is full.
//
// Caches are safe for concurrent use.
type ImageCache struct {
	content *lru.Cache[string, image.Image]
}

// NewImageCache returns an empty image cache. size is the number of images that
// will be cached, values < 1 are treated as 1.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = 1
	}
	// New only fails for size ≤ 0
	content, _ := lru.New[string, image.Image](size)
	return &ImageCache{content: content}
}

// Put adds an image to the cache.
func (cache *ImageCache) Put(key string, img image.Image) {
	cache.content.Add(key, img)
}

// Get returns the image from the cache. If the return value is nil the image
// was not found in the cache.
func (cache *ImageCache) Get(key string) image.Image {
	if img, has := cache.content.Get(key); has {
		return img
	}
	return nil
}

// Len returns the number of cached images.
func (cache *ImageCache) Len() int {
	return cache.content.Len()
}
