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
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxResolution is the maximal width / height of a Static Maps image.
	MaxResolution = 640

	// MaxZoom is the highest zoom level served by the API.
	MaxZoom = 21

	// DefaultStyle hides all labels.
	DefaultStyle = "element:labels|visibility:off"
)

// MapType is the type of map requested.
type MapType string

const (
	MapTypeSatellite MapType = "satellite"
	MapTypeRoadmap   MapType = "roadmap"
	MapTypeTerrain   MapType = "terrain"
	MapTypeHybrid    MapType = "hybrid"
)

// ParseMapType parses one of satellite, roadmap, terrain and hybrid.
func ParseMapType(s string) (MapType, error) {
	switch t := MapType(s); t {
	case MapTypeSatellite, MapTypeRoadmap, MapTypeTerrain, MapTypeHybrid:
		return t, nil
	default:
		return "", errors.Newf("unknown map type \"%s\"", s)
	}
}

var requestValidator = validator.New()

// Request describes a single Static Maps image: A square image with Size
// pixels (times Scale) centered at Center.
type Request struct {
	Center  LatLon  `json:"center"`
	Zoom    int     `json:"zoom" validate:"gte=0,lte=21"`
	Size    int     `json:"size" validate:"gte=1,lte=640"`
	Scale   int     `json:"scale" validate:"oneof=1 2 4"`
	MapType MapType `json:"maptype" validate:"omitempty,oneof=satellite roadmap terrain hybrid"`
}

// NewRequest returns a request for a satellite image of maximal resolution.
func NewRequest(center LatLon, zoom, scale int) Request {
	return Request{
		Center:  center,
		Zoom:    zoom,
		Size:    MaxResolution,
		Scale:   scale,
		MapType: MapTypeSatellite,
	}
}

func (r Request) mapType() MapType {
	if r.MapType == "" {
		return MapTypeSatellite
	}
	return r.MapType
}

// Validate checks that the request can be served by the API. The center of
// a tile at the border of the world image lies beyond MaxLatitude, so any
// latitude within ±90 is accepted here.
func (r Request) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		return errors.Wrap(err, "invalid image request")
	}
	if math.Abs(r.Center.Lat) > 90 || math.IsNaN(r.Center.Lat) {
		return errors.Newf("invalid image request: latitude %f outside of ±90", r.Center.Lat)
	}
	if math.Abs(r.Center.Lon) > 180 || math.IsNaN(r.Center.Lon) {
		return errors.Newf("invalid image request: longitude %f outside of ±180", r.Center.Lon)
	}
	return nil
}

// CacheKey returns the name under which the image is stored in a cache.
// Satellite images are stored as
// image_lat=<lat>_lon=<lon>_zoom=<zoom>_scale=<scale>_size=<size>.png
// other map types add _maptype=<type> before the extension.
func (r Request) CacheKey() string {
	base := fmt.Sprintf("image_lat=%.6f_lon=%.6f_zoom=%d_scale=%d_size=%d",
		r.Center.Lat, r.Center.Lon, r.Zoom, r.Scale, r.Size)
	if t := r.mapType(); t != MapTypeSatellite {
		base += "_maptype=" + string(t)
	}
	return base + ".png"
}

var cacheKeyRx = regexp.MustCompile(`^image_lat=(-?\d+\.\d+)_lon=(-?\d+\.\d+)_zoom=(\d+)_scale=(\d+)_size=(\d+)(?:_maptype=([a-z]+))?\.png$`)

// ErrInvalidCacheKey is returned by ParseCacheKey for names not created by
// CacheKey.
var ErrInvalidCacheKey = errors.New("invalid cache key")

// ParseCacheKey is the inverse of CacheKey. Coordinates are only as precise as
// the key (six decimals).
func ParseCacheKey(key string) (Request, error) {
	var res Request
	match := cacheKeyRx.FindStringSubmatch(key)
	if match == nil {
		return res, errors.Wrapf(ErrInvalidCacheKey, "\"%s\"", key)
	}
	// the regex guarantees the syntax, only range errors are possible
	var err error
	if res.Center.Lat, err = strconv.ParseFloat(match[1], 64); err != nil {
		return res, errors.Wrapf(ErrInvalidCacheKey, "latitude: %s", err)
	}
	if res.Center.Lon, err = strconv.ParseFloat(match[2], 64); err != nil {
		return res, errors.Wrapf(ErrInvalidCacheKey, "longitude: %s", err)
	}
	if res.Zoom, err = strconv.Atoi(match[3]); err != nil {
		return res, errors.Wrapf(ErrInvalidCacheKey, "zoom: %s", err)
	}
	if res.Scale, err = strconv.Atoi(match[4]); err != nil {
		return res, errors.Wrapf(ErrInvalidCacheKey, "scale: %s", err)
	}
	if res.Size, err = strconv.Atoi(match[5]); err != nil {
		return res, errors.Wrapf(ErrInvalidCacheKey, "size: %s", err)
	}
	res.MapType = MapTypeSatellite
	if match[6] != "" {
		if res.MapType, err = ParseMapType(match[6]); err != nil {
			return res, errors.Wrapf(ErrInvalidCacheKey, "%s", err)
		}
	}
	return res, nil
}

// Query returns the query parameters for the Static Maps API.
func (r Request) Query(apiKey string) url.Values {
	v := make(url.Values, 7)
	v.Set("center", fmt.Sprintf("%.6f,%.6f", r.Center.Lat, r.Center.Lon))
	v.Set("zoom", strconv.Itoa(r.Zoom))
	v.Set("scale", strconv.Itoa(r.Scale))
	v.Set("size", fmt.Sprintf("%dx%d", r.Size, r.Size))
	v.Set("maptype", string(r.mapType()))
	v.Set("style", DefaultStyle)
	if apiKey != "" {
		v.Set("key", apiKey)
	}
	return v
}

// URL returns the complete request url.
func (r Request) URL(baseURL, apiKey string) string {
	return baseURL + "?" + r.Query(apiKey).Encode()
}
