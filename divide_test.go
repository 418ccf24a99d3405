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
	"image"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTilesSingle(t *testing.T) {
	grid := PlanTiles(PixelCoord{Y: 0, X: 0}, PixelCoord{Y: TileStep, X: TileStep}, 10, 1)
	require.Equal(t, 1, grid.Size())
	tile := grid.Tiles[0][0]
	assert.Equal(t, PixelCoord{Y: 298, X: 298}, tile.CenterPixel)
	assert.Equal(t, image.Rect(0, 0, TileStep, TileStep), tile.Bounds())
	expected := PixelToLatLon(298, 298, 10)
	assert.Equal(t, expected, tile.Center())
	assert.Equal(t, MaxResolution, tile.Request.Size)
	assert.Equal(t, MapTypeSatellite, tile.Request.MapType)
}

func TestPlanTilesBoundaries(t *testing.T) {
	// one more pixel requires another row
	grid := PlanTiles(PixelCoord{Y: 0, X: 0}, PixelCoord{Y: TileStep + 1, X: TileStep}, 10, 1)
	assert.Equal(t, 2, grid.Rows())
	assert.Equal(t, 1, grid.Cols())

	grid = PlanTiles(PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2300}, 12, 1)
	assert.Equal(t, 2, grid.Rows())
	assert.Equal(t, 1, grid.Cols())
	assert.Equal(t, 1, grid.Tiles[0][0].Row)
	assert.Equal(t, 3, grid.Tiles[0][0].Col)
	assert.Equal(t, PixelCoord{Y: 596, X: 1788}, grid.Origin())
	assert.Equal(t, image.Rect(212, 404, 512, 1104), grid.Crop())
}

func TestPlanTilesScale(t *testing.T) {
	grid := PlanTiles(PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2300}, 12, 2)
	assert.Equal(t, 2*TileStep, grid.TileSizePixels())
	assert.Equal(t, image.Rect(424, 808, 1024, 2208), grid.Crop())
	rects := grid.Rects()
	assert.Equal(t, 2, rects.Size())
	assert.Equal(t, image.Rect(0, 2*TileStep, 2*TileStep, 4*TileStep), rects.Get(0, 1))
	for _, r := range grid.Requests() {
		assert.Equal(t, 2, r.Scale)
		assert.Equal(t, 12, r.Zoom)
	}
}

func TestPlanTilesAligned(t *testing.T) {
	// overlapping areas share the same requests
	a := PlanTiles(PixelCoord{Y: 100, X: 100}, PixelCoord{Y: 900, X: 900}, 15, 1)
	b := PlanTiles(PixelCoord{Y: 650, X: 650}, PixelCoord{Y: 1300, X: 1300}, 15, 1)
	keys := make(map[string]bool)
	for _, r := range a.Requests() {
		keys[r.CacheKey()] = true
	}
	shared := 0
	for _, r := range b.Requests() {
		if keys[r.CacheKey()] {
			shared++
		}
	}
	assert.Equal(t, 4, a.Size())
	assert.Equal(t, 4, b.Size())
	assert.Equal(t, 1, shared)
}

func TestPlanTilesNegative(t *testing.T) {
	grid := PlanTiles(PixelCoord{Y: -10, X: -10}, PixelCoord{Y: 10, X: 10}, 3, 1)
	assert.Equal(t, 2, grid.Rows())
	assert.Equal(t, 2, grid.Cols())
	assert.Equal(t, PixelCoord{Y: -TileStep, X: -TileStep}, grid.Origin())
}

func TestPlanTilesWorldEdges(t *testing.T) {
	size := PixelCount(12)
	grid := PlanTiles(PixelCoord{Y: size - 50, X: size - 100}, PixelCoord{Y: size, X: size}, 12, 1)
	require.Equal(t, 1, grid.Size())
	tile := grid.Tiles[0][0]
	// the center lies beyond the east and south border of the world image
	assert.True(t, tile.CenterPixel.X > size)
	assert.True(t, tile.CenterPixel.Y > size)
	assert.True(t, tile.Center().Lon < -179.9)
	assert.True(t, tile.Center().Lat < -MaxLatitude)
	assert.NoError(t, tile.Request.Validate())

	again := PlanTiles(PixelCoord{Y: size - 10, X: size - 10}, PixelCoord{Y: size, X: size}, 12, 1)
	assert.Equal(t, tile.Request.CacheKey(), again.Tiles[0][0].Request.CacheKey())

	grid = PlanTiles(PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 100, X: 100}, 0, 1)
	require.Equal(t, 1, grid.Size())
	assert.NoError(t, grid.Tiles[0][0].Request.Validate())
}

func TestCountTiles(t *testing.T) {
	for _, tc := range []struct{ p1, p2 PixelCoord }{
		{PixelCoord{Y: 1000, X: 2000}, PixelCoord{Y: 1700, X: 2300}},
		{PixelCoord{Y: -10, X: -10}, PixelCoord{Y: 10, X: 10}},
		{PixelCoord{Y: 0, X: 0}, PixelCoord{Y: TileStep + 1, X: TileStep}},
	} {
		assert.Equal(t, int64(PlanTiles(tc.p1, tc.p2, 12, 1).Size()), CountTiles(tc.p1, tc.p2))
	}
	assert.Equal(t, int64(0), CountTiles(PixelCoord{Y: 10, X: 10}, PixelCoord{Y: 10, X: 20}))
	// the whole world at the highest zoom level
	size := PixelCount(MaxZoom)
	perSide := int64(size/TileStep + 1)
	assert.Equal(t, perSide*perSide, CountTiles(PixelCoord{}, PixelCoord{Y: size, X: size}))
}

func TestCheckTileLimit(t *testing.T) {
	p1, p2 := PixelCoord{Y: 0, X: 0}, PixelCoord{Y: 1000, X: 1000}
	assert.NoError(t, CheckTileLimit(p1, p2, 1, 4))
	assert.True(t, errors.Is(CheckTileLimit(p1, p2, 1, 3), ErrAreaTooLarge))
	assert.True(t, errors.Is(CheckTileLimit(p1, p2, 2, 15), ErrAreaTooLarge))
	assert.NoError(t, CheckTileLimit(p1, p2, 2, 16))

	world := PixelCoord{Y: PixelCount(15), X: PixelCount(15)}
	assert.True(t, errors.Is(CheckTileLimit(PixelCoord{}, world, 1, 0), ErrAreaTooLarge))
	assert.NoError(t, CheckTileLimit(PixelCoord{}, world, 1, -1))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 1, floorDiv(5, 3))
	assert.Equal(t, -2, floorDiv(-5, 3))
	assert.Equal(t, -1, floorDiv(-3, 3))
	assert.Equal(t, 0, floorDiv(0, 3))
}
