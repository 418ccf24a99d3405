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

	"github.com/cockroachdb/errors"
)

const (
	// EarthRadius is the equatorial radius of the earth in meters (WGS84).
	EarthRadius = 6378137.0

	// EarthCircumference is the circumference at the equator in meters.
	EarthCircumference = 2 * math.Pi * EarthRadius

	// TileSize is the width (and height) of the world image at zoom level 0.
	TileSize = 256
)

// MaxLatitude is the maximal latitude (in degrees) of the web mercator
// projection, approximately 85.0511.
var MaxLatitude = RadToDeg(Gd(math.Pi))

// Gd is the Gudermannian function, see
// https://en.wikipedia.org/wiki/Gudermannian_function
func Gd(tau float64) float64 {
	return 2*math.Atan(math.Exp(tau)) - 0.5*math.Pi
}

// GdInv is the inverse of the Gudermannian function. rho must satisfy
// |rho| < π/2.
func GdInv(rho float64) float64 {
	return math.Log(1/math.Cos(rho) + math.Tan(rho))
}

// RadToDeg converts radians to degrees.
func RadToDeg(phi float64) float64 {
	return phi * 180 / math.Pi
}

// DegToRad converts degrees to radians.
func DegToRad(rho float64) float64 {
	return rho * math.Pi / 180
}

// LatLon is a coordinate given in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (ll LatLon) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", ll.Lat, ll.Lon)
}

// PixelCoord is a pixel coordinate on the world image of a certain zoom
// level. The origin is the upper left corner (lat MaxLatitude, lon -180).
//
// Like tile divisions coordinates are given as (y, x).
type PixelCoord struct {
	Y int `json:"y"`
	X int `json:"x"`
}

func (p PixelCoord) String() string {
	return fmt.Sprintf("(y=%d, x=%d)", p.Y, p.X)
}

// PixelCount returns the number of pixels in each direction of the world
// image at the given zoom level, that is 256 * 2^zoom.
func PixelCount(zoom int) int {
	return TileSize << uint(zoom)
}

// TileCount returns the number of 256x256 tiles in each direction of the
// world image at the given zoom level.
func TileCount(zoom int) int {
	return 1 << uint(zoom)
}

// LatLonToUniform projects a coordinate to the uniform web mercator square.
// Both values are in [0, 1], starting in the upper left corner (thus lat
// MaxLatitude and lon -180).
func LatLonToUniform(lat, lon float64) (y, x float64) {
	x = 0.5 + DegToRad(lon)/(2*math.Pi)
	y = 0.5 - GdInv(DegToRad(lat))/(2*math.Pi)
	return
}

// UniformToLatLon is the inverse of LatLonToUniform.
func UniformToLatLon(y, x float64) LatLon {
	lon := RadToDeg(2 * math.Pi * (x - 0.5))
	lat := RadToDeg(Gd(2 * math.Pi * (0.5 - y)))
	return LatLon{Lat: lat, Lon: lon}
}

// WrapLongitude maps lon into [-180, 180).
func WrapLongitude(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	res := math.Mod(lon+180, 360)
	if res < 0 {
		res += 360
	}
	return res - 180
}

// PixelToLatLon returns the coordinate of the upper left corner of a pixel.
// The pixel values are floats s.t. positions inside a pixel (for example its
// center) can be converted as well.
func PixelToLatLon(y, x float64, zoom int) LatLon {
	count := float64(PixelCount(zoom))
	return UniformToLatLon(y/count, x/count)
}

// LatLonToPixel returns the pixel containing the coordinate.
func LatLonToPixel(lat, lon float64, zoom int) PixelCoord {
	y, x := LatLonToUniform(lat, lon)
	count := float64(PixelCount(zoom))
	return PixelCoord{Y: int(math.Floor(y * count)), X: int(math.Floor(x * count))}
}

// LatLonToTile returns the 256x256 tile containing the coordinate.
func LatLonToTile(lat, lon float64, zoom int) PixelCoord {
	y, x := LatLonToUniform(lat, lon)
	count := float64(TileCount(zoom))
	return PixelCoord{Y: int(math.Floor(y * count)), X: int(math.Floor(x * count))}
}

// LatLonToWorld returns the world coordinate of a location, that is the
// uniform coordinate scaled to [0, 256].
func LatLonToWorld(lat, lon float64) (y, x float64) {
	y, x = LatLonToUniform(lat, lon)
	return y * TileSize, x * TileSize
}

const (
	secureStep          = 0.000001
	maxSecureIterations = 64
)

// ErrPixelInversion is returned by PixelToLatLonSecure if no coordinate
// mapping back to the requested pixel could be found.
var ErrPixelInversion = errors.New("can't invert pixel coordinate")

// PixelToLatLonSecure works as PixelToLatLon but makes sure that the returned
// coordinate is mapped to exactly (y, x) by LatLonToPixel.
//
// Floating point imprecision can move the corner of a pixel into an adjacent
// pixel. In this case the coordinate is moved in small steps until the
// inverse matches. Steps are at most a quarter pixel at the given zoom, so
// large zoom levels don't skip a pixel.
func PixelToLatLonSecure(y, x int, zoom int) (LatLon, error) {
	ll := PixelToLatLon(float64(y), float64(x), zoom)
	p := LatLonToPixel(ll.Lat, ll.Lon, zoom)

	degPerPixel := 360.0 / float64(PixelCount(zoom))
	lonStep := math.Min(secureStep, degPerPixel/4)
	// meridional pixel size shrinks with cos(lat)
	latStep := math.Min(secureStep, math.Cos(DegToRad(ll.Lat))*degPerPixel/4)

	for i := 0; p.Y != y; i++ {
		if i >= maxSecureIterations || absInt(p.Y-y) > 1 {
			return ll, errors.Wrapf(ErrPixelInversion, "row %d at zoom %d, got %d", y, zoom, p.Y)
		}
		if p.Y < y {
			ll.Lat -= latStep
		} else {
			ll.Lat += latStep
		}
		p = LatLonToPixel(ll.Lat, ll.Lon, zoom)
	}

	for i := 0; p.X != x; i++ {
		if i >= maxSecureIterations || absInt(p.X-x) > 1 {
			return ll, errors.Wrapf(ErrPixelInversion, "column %d at zoom %d, got %d", x, zoom, p.X)
		}
		if p.X < x {
			ll.Lon += lonStep
		} else {
			ll.Lon -= lonStep
		}
		p = LatLonToPixel(ll.Lat, ll.Lon, zoom)
	}
	return ll, nil
}
