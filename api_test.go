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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaNormalize(t *testing.T) {
	a := Area{North: 47.9, West: 7.9, South: 48.0, East: 7.8}.Normalize()
	assert.Equal(t, Area{North: 48.0, West: 7.8, South: 47.9, East: 7.9}, a)
	assert.Equal(t, LatLon{Lat: 48.0, Lon: 7.8}, a.NorthWest())
	assert.Equal(t, LatLon{Lat: 47.9, Lon: 7.9}, a.SouthEast())
	center := a.Center()
	assert.InDelta(t, 47.95, center.Lat, 1e-9)
	assert.InDelta(t, 7.85, center.Lon, 1e-9)
}

func TestAreaBound(t *testing.T) {
	a := Area{North: 48.0, West: 7.8, South: 47.9, East: 7.9}
	b := a.Bound()
	assert.Equal(t, orb.Point{7.8, 47.9}, b.Min)
	assert.Equal(t, orb.Point{7.9, 48.0}, b.Max)
	assert.Equal(t, a, AreaFromBound(b))
}

func TestAreaValidate(t *testing.T) {
	assert.NoError(t, Area{North: 48.0, West: 7.8, South: 47.9, East: 7.9}.Validate())
	assert.Error(t, Area{North: 86, West: 7.8, South: 47.9, East: 7.9}.Validate())
	assert.Error(t, Area{North: 48, West: -181, South: 47.9, East: 7.9}.Validate())
}

func TestPixelAreaFromPoints(t *testing.T) {
	p := PixelAreaFromPoints(PixelCoord{Y: 20, X: 5}, PixelCoord{Y: 10, X: 15})
	assert.Equal(t, PixelCoord{Y: 10, X: 5}, p.Min)
	assert.Equal(t, PixelCoord{Y: 20, X: 15}, p.Max)

	a := p.LatLon(3)
	assert.Greater(t, a.North, a.South)
	assert.Greater(t, a.East, a.West)
}

func TestGetImagePixels(t *testing.T) {
	pixels := PixelArea{Min: PixelCoord{Y: 1700, X: 2300}, Max: PixelCoord{Y: 1000, X: 2000}}
	res, err := GetImage(context.Background(), &fakeFetcher{}, GetImageRequest{
		Zoom:   12,
		Scale:  1,
		Pixels: &pixels,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, PixelCoord{Y: 1000, X: 2000}, res.PixelMin)
	assert.Equal(t, PixelCoord{Y: 1700, X: 2300}, res.PixelMax)
	assert.Equal(t, 300, res.Image.Bounds().Dx())
	assert.Equal(t, 700, res.Image.Bounds().Dy())
}

func TestGetImageLatLon(t *testing.T) {
	area := Area{North: 47.995, West: 7.86, South: 48.0, East: 7.85}
	res, err := GetImage(context.Background(), &fakeFetcher{}, GetImageRequest{
		Zoom:        16,
		Scale:       2,
		LatLon:      &area,
		Coordinates: true,
	}, Options{NumRoutines: 2})
	require.NoError(t, err)
	p := area.Pixels(16)
	assert.Equal(t, p.Min, res.PixelMin)
	assert.Equal(t, 2*(p.Max.X-p.Min.X), res.Image.Bounds().Dx())
	require.NotNil(t, res.Coordinates)
	// the upper left pixel is the north west corner
	nw := res.Coordinates.At(0, 0)
	assert.InDelta(t, 48.0, nw.Lat, 1e-4)
	assert.InDelta(t, 7.85, nw.Lon, 1e-4)
}

func TestGetImageInvalid(t *testing.T) {
	ctx := context.Background()
	_, err := GetImage(ctx, &fakeFetcher{}, GetImageRequest{Zoom: 12, Scale: 1}, Options{})
	assert.True(t, errors.Is(err, ErrNoBounds))

	area := Area{North: 48.0, West: 7.8, South: 47.9, East: 7.9}
	pixels := PixelArea{Max: PixelCoord{Y: 10, X: 10}}
	_, err = GetImage(ctx, &fakeFetcher{}, GetImageRequest{
		Zoom: 12, Scale: 1, LatLon: &area, Pixels: &pixels,
	}, Options{})
	assert.Error(t, err)

	bad := Area{North: 89, West: 7.8, South: 47.9, East: 7.9}
	_, err = GetImage(ctx, &fakeFetcher{}, GetImageRequest{Zoom: 12, Scale: 1, LatLon: &bad}, Options{})
	assert.Error(t, err)
}
