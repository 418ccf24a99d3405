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
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
)

// ErrNoBounds is returned by GetImage if neither pixel nor lat / lon bounds
// are given.
var ErrNoBounds = errors.New("either provide pixel coordinates or latlon coordinates")

// Area is a bounding box given in degrees.
type Area struct {
	North float64 `json:"north"`
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
}

// AreaFromPoints returns the smallest area containing both coordinates.
func AreaFromPoints(a, b LatLon) Area {
	return Area{
		North: math.Max(a.Lat, b.Lat),
		South: math.Min(a.Lat, b.Lat),
		West:  math.Min(a.Lon, b.Lon),
		East:  math.Max(a.Lon, b.Lon),
	}
}

// AreaFromBound converts an orb bound (x = lon, y = lat).
func AreaFromBound(b orb.Bound) Area {
	return Area{
		North: b.Max.Lat(),
		West:  b.Min.Lon(),
		South: b.Min.Lat(),
		East:  b.Max.Lon(),
	}
}

// Normalize swaps the borders if required s.t. North ≥ South and East ≥ West.
func (a Area) Normalize() Area {
	return AreaFromPoints(a.NorthWest(), a.SouthEast())
}

// NorthWest returns the upper left corner.
func (a Area) NorthWest() LatLon {
	return LatLon{Lat: a.North, Lon: a.West}
}

// SouthEast returns the lower right corner.
func (a Area) SouthEast() LatLon {
	return LatLon{Lat: a.South, Lon: a.East}
}

// Center returns the coordinate in the middle of the area.
func (a Area) Center() LatLon {
	return LatLon{Lat: (a.North + a.South) / 2, Lon: (a.West + a.East) / 2}
}

// Bound converts the area to an orb bound.
func (a Area) Bound() orb.Bound {
	a = a.Normalize()
	return orb.Bound{
		Min: orb.Point{a.West, a.South},
		Max: orb.Point{a.East, a.North},
	}
}

// Validate checks that the area lies within the web mercator projection.
func (a Area) Validate() error {
	for _, lat := range []float64{a.North, a.South} {
		if math.IsNaN(lat) || math.Abs(lat) > MaxLatitude {
			return errors.Newf("latitude %f outside of ±%f", lat, MaxLatitude)
		}
	}
	for _, lon := range []float64{a.West, a.East} {
		if math.IsNaN(lon) || math.Abs(lon) > 180 {
			return errors.Newf("longitude %f outside of ±180", lon)
		}
	}
	return nil
}

// Pixels returns the pixel area at the given zoom, the lower right corner is
// exclusive.
func (a Area) Pixels(zoom int) PixelArea {
	a = a.Normalize()
	return PixelArea{
		Min: LatLonToPixel(a.North, a.West, zoom),
		Max: LatLonToPixel(a.South, a.East, zoom),
	}
}

func (a Area) String() string {
	return fmt.Sprintf("[N %.6f, W %.6f, S %.6f, E %.6f]", a.North, a.West, a.South, a.East)
}

// PixelArea is a rectangle of pixels at some zoom level.
type PixelArea struct {
	Min PixelCoord `json:"min"`
	Max PixelCoord `json:"max"`
}

// PixelAreaFromPoints returns the area spanned by both pixels.
func PixelAreaFromPoints(a, b PixelCoord) PixelArea {
	return PixelArea{
		Min: PixelCoord{Y: IntMin(a.Y, b.Y), X: IntMin(a.X, b.X)},
		Max: PixelCoord{Y: IntMax(a.Y, b.Y), X: IntMax(a.X, b.X)},
	}
}

// LatLon converts the area to coordinates.
func (p PixelArea) LatLon(zoom int) Area {
	nw := PixelToLatLon(float64(p.Min.Y), float64(p.Min.X), zoom)
	se := PixelToLatLon(float64(p.Max.Y), float64(p.Max.X), zoom)
	return AreaFromPoints(nw, se)
}

// GetImageRequest describes an image either by pixel or by lat / lon bounds.
// Exactly one of Pixels and LatLon must be given.
type GetImageRequest struct {
	Zoom  int `json:"zoom"`
	Scale int `json:"scale"`

	Pixels *PixelArea `json:"pixels,omitempty"`
	LatLon *Area      `json:"latlon,omitempty"`

	FullTiles   bool `json:"full_tiles"`
	Square      bool `json:"square"`
	Coordinates bool `json:"coordinates"`
}

// Options returns the construction options of the request.
func (r GetImageRequest) Options() Options {
	return Options{
		Zoom:        r.Zoom,
		Scale:       r.Scale,
		FullTiles:   r.FullTiles,
		Square:      r.Square,
		Coordinates: r.Coordinates,
	}
}

// PixelArea returns the pixels covered by the request at its zoom level,
// with Square already applied.
func (r GetImageRequest) PixelArea() (PixelArea, error) {
	var p PixelArea
	switch {
	case r.Pixels != nil && r.LatLon != nil:
		return p, errors.New("provide either pixel coordinates or latlon coordinates, not both")
	case r.Pixels != nil:
		p = PixelAreaFromPoints(r.Pixels.Min, r.Pixels.Max)
	case r.LatLon != nil:
		area := r.LatLon.Normalize()
		if err := area.Validate(); err != nil {
			return p, err
		}
		p = area.Pixels(r.Zoom)
	default:
		return p, ErrNoBounds
	}
	if r.Square {
		p.Min, p.Max = SquarifyPixels(p.Min, p.Max)
	}
	return p, nil
}

// CheckTileLimit works as the function CheckTileLimit for the area of the
// request.
func (r GetImageRequest) CheckTileLimit(maxTiles int) error {
	p, err := r.PixelArea()
	if err != nil {
		return err
	}
	return CheckTileLimit(p.Min, p.Max, r.Scale, maxTiles)
}

// GetImage constructs the image described by the request. Pixel bounds are
// normalized (min / max of both corners) and used as given, lat / lon bounds
// are normalized and converted to pixels at the zoom level.
func GetImage(ctx context.Context, fetcher Fetcher, r GetImageRequest, opts Options) (*Result, error) {
	opts.Zoom, opts.Scale = r.Zoom, r.Scale
	opts.FullTiles, opts.Square, opts.Coordinates = r.FullTiles, r.Square, r.Coordinates
	switch {
	case r.Pixels != nil && r.LatLon != nil:
		return nil, errors.New("provide either pixel coordinates or latlon coordinates, not both")
	case r.Pixels != nil:
		p := PixelAreaFromPoints(r.Pixels.Min, r.Pixels.Max)
		return ConstructPixels(ctx, fetcher, p.Min, p.Max, opts)
	case r.LatLon != nil:
		area := r.LatLon.Normalize()
		if err := area.Validate(); err != nil {
			return nil, err
		}
		return Construct(ctx, fetcher, area, opts)
	default:
		return nil, ErrNoBounds
	}
}
