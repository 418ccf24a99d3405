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
	"math"

	"github.com/cockroachdb/errors"
)

// TileStep is the number of pixels (at scale 1) covered by one tile after
// the logo has been cut away.
const TileStep = MaxResolution - 2*LogoMargin

// TileDivision represents the division of an image into rectangles.
//
// Tiles are not stored in the fashion (x, y) but (y, x). That means each entry
// in the division describes one row of the image.
// The get method does this correctly.
type TileDivision [][]image.Rectangle

// Get returns the rectangle at position div[y][x], that is the rectangle
// in row y and column x.
func (div TileDivision) Get(x, y int) image.Rectangle {
	return div[y][x]
}

// Size returns the number of rectangles in the division.
func (div TileDivision) Size() int {
	res := 0
	for _, row := range div {
		res += len(row)
	}
	return res
}

// Tile is one Static Maps image of a TileGrid.
type Tile struct {
	// Row and Col are the position of the tile in the grid of all tiles
	// (of size TileStep) of the world image, not in the TileGrid.
	Row, Col int

	// CenterPixel is the center of the tile on the world image at the grid
	// zoom level.
	CenterPixel PixelCoord

	Request Request
}

// Center returns the requested center coordinate.
func (t Tile) Center() LatLon {
	return t.Request.Center
}

// Bounds returns the area (in pixels at the grid zoom) covered by the tile
// once the logo is removed.
func (t Tile) Bounds() image.Rectangle {
	return image.Rect(t.Col*TileStep, t.Row*TileStep, (t.Col+1)*TileStep, (t.Row+1)*TileStep)
}

// TileGrid is the set of Static Maps images required to cover a pixel area.
//
// Tiles are stored in coordinates [y][x], see TileDivision.
type TileGrid struct {
	Zoom, Scale int
	// Min and Max are the requested pixel area, Max is exclusive.
	Min, Max PixelCoord
	Tiles    [][]Tile
}

func tileCenter(t int) int {
	return int(math.Floor((float64(t) + 0.5) * TileStep))
}

// CountTiles returns the number of tiles PlanTiles computes for the pixel
// area without allocating them.
func CountTiles(p1, p2 PixelCoord) int64 {
	rows := int64(floorDiv(p2.Y-1, TileStep) - floorDiv(p1.Y, TileStep) + 1)
	cols := int64(floorDiv(p2.X-1, TileStep) - floorDiv(p1.X, TileStep) + 1)
	if rows <= 0 || cols <= 0 {
		return 0
	}
	return rows * cols
}

// CheckTileLimit returns ErrAreaTooLarge if the pixel area requires more than
// maxTiles tiles. A tile of scale s counts s² times, so the limit bounds the
// memory of the stitched image. maxTiles = 0 means DefaultMaxTiles, a
// negative value disables the check.
func CheckTileLimit(p1, p2 PixelCoord, scale, maxTiles int) error {
	if maxTiles < 0 {
		return nil
	}
	if maxTiles == 0 {
		maxTiles = DefaultMaxTiles
	}
	count := CountTiles(p1, p2)
	weighted := count * int64(scale) * int64(scale)
	if weighted > int64(maxTiles) {
		return errors.Wrapf(ErrAreaTooLarge, "%d tiles of scale %d exceed the limit of %d",
			count, scale, maxTiles)
	}
	return nil
}

// PlanTiles computes the tiles required to cover the pixel area from p1
// (upper left) to p2 (lower right, exclusive) at the given zoom level.
//
// Tiles are aligned to a global grid of size TileStep, so images requested
// for overlapping areas are the same and can be taken from the cache.
func PlanTiles(p1, p2 PixelCoord, zoom, scale int) *TileGrid {
	t1 := PixelCoord{Y: floorDiv(p1.Y, TileStep), X: floorDiv(p1.X, TileStep)}
	// p2 is exclusive
	t2 := PixelCoord{Y: floorDiv(p2.Y-1, TileStep), X: floorDiv(p2.X-1, TileStep)}
	rows := IntMax(t2.Y-t1.Y+1, 0)
	cols := IntMax(t2.X-t1.X+1, 0)
	tiles := make([][]Tile, rows)
	for i := 0; i < rows; i++ {
		tiles[i] = make([]Tile, cols)
		for j := 0; j < cols; j++ {
			row, col := t1.Y+i, t1.X+j
			center := PixelCoord{Y: tileCenter(row), X: tileCenter(col)}
			// centers of the last row / column may lie outside of the world
			// image, the API wraps them around
			ll := PixelToLatLon(float64(center.Y), float64(center.X), zoom)
			ll.Lon = WrapLongitude(ll.Lon)
			tiles[i][j] = Tile{
				Row:         row,
				Col:         col,
				CenterPixel: center,
				Request:     NewRequest(ll, zoom, scale),
			}
		}
	}
	return &TileGrid{
		Zoom:  zoom,
		Scale: scale,
		Min:   p1,
		Max:   p2,
		Tiles: tiles,
	}
}

// Rows returns the number of tile rows.
func (g *TileGrid) Rows() int {
	return len(g.Tiles)
}

// Cols returns the number of tile columns.
func (g *TileGrid) Cols() int {
	if len(g.Tiles) == 0 {
		return 0
	}
	return len(g.Tiles[0])
}

// Size returns the number of tiles.
func (g *TileGrid) Size() int {
	return g.Rows() * g.Cols()
}

// Origin returns the pixel (at the grid zoom) of the upper left corner of
// the upper left tile.
func (g *TileGrid) Origin() PixelCoord {
	if g.Size() == 0 {
		return g.Min
	}
	first := g.Tiles[0][0]
	return PixelCoord{Y: first.Row * TileStep, X: first.Col * TileStep}
}

// TileSizePixels is the size of a tile in the stitched image.
func (g *TileGrid) TileSizePixels() int {
	return g.Scale * TileStep
}

// Rects returns the area of each tile in the stitched image. The division
// starts at (0, 0).
func (g *TileGrid) Rects() TileDivision {
	size := g.TileSizePixels()
	res := make(TileDivision, g.Rows())
	for i, row := range g.Tiles {
		res[i] = make([]image.Rectangle, len(row))
		for j := range row {
			res[i][j] = image.Rect(j*size, i*size, (j+1)*size, (i+1)*size)
		}
	}
	return res
}

// Crop returns the area of the requested pixels in the stitched image.
func (g *TileGrid) Crop() image.Rectangle {
	origin := g.Origin()
	return image.Rect(
		g.Scale*(g.Min.X-origin.X), g.Scale*(g.Min.Y-origin.Y),
		g.Scale*(g.Max.X-origin.X), g.Scale*(g.Max.Y-origin.Y))
}

// Requests returns the requests of all tiles, row by row.
func (g *TileGrid) Requests() []Request {
	res := make([]Request, 0, g.Size())
	for _, row := range g.Tiles {
		for _, t := range row {
			res = append(res, t.Request)
		}
	}
	return res
}
