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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(zoom, scale int) Options {
	return Options{Zoom: zoom, Scale: scale, NumRoutines: 4}
}

func TestConstructPixels(t *testing.T) {
	fetcher := &fakeFetcher{}
	p1, p2 := PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2300}
	res, err := ConstructPixels(context.Background(), fetcher, p1, p2, testOptions(12, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls())
	assert.Equal(t, 300, res.Image.Bounds().Dx())
	assert.Equal(t, 700, res.Image.Bounds().Dy())
	assert.Equal(t, p1, res.PixelMin)
	assert.Equal(t, p2, res.PixelMax)
	assert.Nil(t, res.Coordinates)

	// world pixel 1000 is in tile row 1, 1192 is the first pixel of row 2
	assert.True(t, sameColor(res.Image.RGBAAt(0, 0), tileColor(1, 3)))
	assert.True(t, sameColor(res.Image.RGBAAt(299, 191), tileColor(1, 3)))
	assert.True(t, sameColor(res.Image.RGBAAt(0, 192), tileColor(2, 3)))
	assert.True(t, sameColor(res.Image.RGBAAt(150, 699), tileColor(2, 3)))
}

func TestConstructNoLogo(t *testing.T) {
	fetcher := &fakeFetcher{}
	res, err := ConstructPixels(context.Background(), fetcher,
		PixelCoord{Y: 500, X: 500}, PixelCoord{Y: 1300, X: 1300}, testOptions(11, 1))
	require.NoError(t, err)
	bounds := res.Image.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if sameColor(res.Image.RGBAAt(x, y), logoColor) {
				t.Fatalf("logo pixel at (%d, %d)", x, y)
			}
		}
	}
}

func TestConstructScale(t *testing.T) {
	fetcher := &fakeFetcher{}
	res, err := ConstructPixels(context.Background(), fetcher,
		PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2300}, testOptions(12, 2))
	require.NoError(t, err)
	assert.Equal(t, 600, res.Image.Bounds().Dx())
	assert.Equal(t, 1400, res.Image.Bounds().Dy())
	assert.True(t, sameColor(res.Image.RGBAAt(0, 383), tileColor(1, 3)))
	assert.True(t, sameColor(res.Image.RGBAAt(0, 384), tileColor(2, 3)))
}

func TestConstructFullTiles(t *testing.T) {
	opts := testOptions(12, 1)
	opts.FullTiles = true
	res, err := ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2300}, opts)
	require.NoError(t, err)
	assert.Equal(t, TileStep, res.Image.Bounds().Dx())
	assert.Equal(t, 2*TileStep, res.Image.Bounds().Dy())
	assert.Equal(t, PixelCoord{Y: 596, X: 1788}, res.PixelMin)
	assert.Equal(t, PixelCoord{Y: 1788, X: 2384}, res.PixelMax)
}

func TestConstructSquare(t *testing.T) {
	opts := testOptions(12, 1)
	opts.Square = true
	res, err := ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1100, X: 2300}, opts)
	require.NoError(t, err)
	assert.Equal(t, 300, res.Image.Bounds().Dx())
	assert.Equal(t, 300, res.Image.Bounds().Dy())
	assert.Equal(t, PixelCoord{Y: 900, X: 2000}, res.PixelMin)
}

func TestConstructCoordinates(t *testing.T) {
	opts := testOptions(12, 2)
	opts.Coordinates = true
	res, err := ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1010, X: 2005}, opts)
	require.NoError(t, err)
	require.NotNil(t, res.Coordinates)
	rows, cols := res.Coordinates.Dims()
	assert.Equal(t, 20, rows)
	assert.Equal(t, 10, cols)
	assert.Equal(t, 13, res.Coordinates.Zoom)
	// pixel (2, 4) of the image is pixel (1001, 2002) at zoom 12
	expected := PixelToLatLon(1001, 2002, 12)
	got := res.Coordinates.At(2, 4)
	assert.InDelta(t, expected.Lat, got.Lat, 1e-5)
	assert.InDelta(t, expected.Lon, got.Lon, 1e-5)
}

func TestConstructImageCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	opts := testOptions(12, 1)
	opts.Cache = NewImageCache(16)
	progress := 0
	opts.Progress = func(num int) { progress = num }
	p1, p2 := PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2900}
	_, err := ConstructPixels(context.Background(), fetcher, p1, p2, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, fetcher.Calls())
	assert.Equal(t, 4, opts.Cache.Len())
	assert.Equal(t, 4, progress)

	_, err = ConstructPixels(context.Background(), fetcher, p1, p2, opts)
	require.NoError(t, err)
	assert.Equal(t, 4, fetcher.Calls())
}

func TestConstructErrors(t *testing.T) {
	_, err := ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 10, X: 20}, testOptions(12, 1))
	assert.True(t, errors.Is(err, ErrEmptyArea))

	_, err = ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 20, X: 20}, testOptions(12, 3))
	assert.Error(t, err)

	fetchErr := errors.New("no connection")
	failing := FetcherFunc(func(ctx context.Context, r Request) ([]byte, error) {
		return nil, fetchErr
	})
	_, err = ConstructPixels(context.Background(), failing,
		PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 20, X: 20}, testOptions(12, 1))
	assert.True(t, errors.Is(err, fetchErr))

	invalid := FetcherFunc(func(ctx context.Context, r Request) ([]byte, error) {
		return []byte("not an image"), nil
	})
	_, err = ConstructPixels(context.Background(), invalid,
		PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 20, X: 20}, testOptions(12, 1))
	assert.Error(t, err)
}

func TestConstructWorldEdges(t *testing.T) {
	// the only tile at zoom 0 has its center below the world image
	fetcher := &fakeFetcher{}
	res, err := ConstructPixels(context.Background(), fetcher,
		PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 100, X: 100}, testOptions(0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Equal(t, 90, res.Image.Bounds().Dx())
	assert.Equal(t, 90, res.Image.Bounds().Dy())

	// last column at the east border
	size := PixelCount(12)
	res, err = ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: 1000, X: size - 100}, PixelCoord{Y: 1100, X: size}, testOptions(12, 1))
	require.NoError(t, err)
	assert.Equal(t, 100, res.Image.Bounds().Dx())

	// last row at the south border
	res, err = ConstructPixels(context.Background(), &fakeFetcher{},
		PixelCoord{Y: size - 50, X: 1000}, PixelCoord{Y: size, X: 1100}, testOptions(12, 1))
	require.NoError(t, err)
	assert.Equal(t, 50, res.Image.Bounds().Dy())

	area := Area{North: 10.01, West: 179.9, South: 10.0, East: 179.99}
	_, err = Construct(context.Background(), &fakeFetcher{}, area, testOptions(12, 1))
	require.NoError(t, err)
}

func TestConstructTileLimit(t *testing.T) {
	fetcher := &fakeFetcher{}
	world := Area{North: 80, West: -170, South: -80, East: 170}
	_, err := Construct(context.Background(), fetcher, world, testOptions(15, 1))
	assert.True(t, errors.Is(err, ErrAreaTooLarge))
	assert.Equal(t, 0, fetcher.Calls())

	p1, p2 := PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2900}
	opts := testOptions(12, 1)
	opts.MaxTiles = 3
	_, err = ConstructPixels(context.Background(), fetcher, p1, p2, opts)
	assert.True(t, errors.Is(err, ErrAreaTooLarge))
	opts.MaxTiles = 4
	_, err = ConstructPixels(context.Background(), fetcher, p1, p2, opts)
	assert.NoError(t, err)
	assert.Equal(t, 4, fetcher.Calls())
}

func TestConstructArea(t *testing.T) {
	area := Area{North: 48.0, West: 7.85, South: 47.995, East: 7.86}
	res, err := Construct(context.Background(), &fakeFetcher{}, area, testOptions(16, 1))
	require.NoError(t, err)
	p := area.Pixels(16)
	assert.Equal(t, p.Min, res.PixelMin)
	assert.Equal(t, p.Max.X-p.Min.X, res.Image.Bounds().Dx())
	assert.Equal(t, p.Max.Y-p.Min.Y, res.Image.Bounds().Dy())
}

func TestScaleZoom(t *testing.T) {
	assert.Equal(t, 0, ScaleZoom(1))
	assert.Equal(t, 1, ScaleZoom(2))
	assert.Equal(t, 2, ScaleZoom(4))
}
