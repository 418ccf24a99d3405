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
	"math"

	"github.com/cockroachdb/errors"
)

// ErrNoZoom is returned by DeriveZoom if no zoom level reaches the goal.
var ErrNoZoom = errors.New("no zoom level reaches the ground sampling distance")

// mercatorScale is the scale factor of the projection at the given latitude.
func mercatorScale(lat float64) float64 {
	return 1 / math.Cos(DegToRad(lat))
}

// ComputeGSD returns the ground sampling distance, that is the spatial
// resolution in meters per pixel, of an image at the given latitude, zoom and
// scale.
func ComputeGSD(lat float64, zoom, scale int) float64 {
	k := mercatorScale(lat)
	return EarthCircumference / (float64(PixelCount(zoom)) * k * float64(scale))
}

// DeriveZoom computes a zoom level s.t. the ground sampling distance is
// smaller or equal to goalGSD (+ deviation).
//
// The continuous solution of ComputeGSD(lat, zoom, scale) = goalGSD is
// computed first. The candidates floor - 1, floor and ceil of that value are
// tested in that order, the first one within goalGSD + deviation is returned.
// Thus a coarser level is preferred if the deviation allows it.
func DeriveZoom(lat float64, scale int, goalGSD, deviation float64) (int, error) {
	if goalGSD <= 0 {
		return -1, errors.Newf("ground sampling distance must be positive, got %f", goalGSD)
	}
	if scale <= 0 {
		return -1, errors.Newf("scale must be positive, got %d", scale)
	}
	k := mercatorScale(lat)
	zoom := math.Log2(EarthCircumference / (TileSize * goalGSD * k * float64(scale)))
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return -1, errors.Wrapf(ErrNoZoom, "latitude %f", lat)
	}
	lower := int(math.Floor(zoom))
	candidates := []int{lower - 1, lower, int(math.Ceil(zoom))}
	for _, candidate := range candidates {
		// levels below 0 don't exist, level 0 is already finer than the goal
		candidate = IntMax(candidate, 0)
		if ComputeGSD(lat, candidate, scale) <= goalGSD+deviation {
			return candidate, nil
		}
	}
	return -1, errors.Wrapf(ErrNoZoom, "goal %f at latitude %f", goalGSD, lat)
}
