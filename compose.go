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
	"image/draw"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyArea is returned if an area does not contain a single pixel at the
// requested zoom level.
var ErrEmptyArea = errors.New("area is empty")

// ErrAreaTooLarge is returned if an area requires more tiles than allowed.
var ErrAreaTooLarge = errors.New("area requires too many tiles")

// DefaultMaxTiles is the number of scale 1 tiles an image may consist of if
// nothing else is configured.
const DefaultMaxTiles = 256

// Options control how an image is constructed.
type Options struct {
	Zoom  int
	Scale int

	// FullTiles keeps the complete tiles instead of cropping the image to the
	// requested area.
	FullTiles bool

	// Square enlarges the area s.t. the result is a square.
	Square bool

	// Coordinates enables the computation of a CoordinateGrid.
	Coordinates bool

	// NumRoutines is the number of tiles fetched concurrently, ≤ 0 means
	// twice the number of CPUs.
	NumRoutines int

	// MaxTiles limits the number of tiles, see CheckTileLimit.
	MaxTiles int

	// Cache stores decoded tiles, can be nil.
	Cache *ImageCache

	Progress ProgressFunc
}

// DefaultRoutines returns the number of go routines used if nothing else is
// configured.
func DefaultRoutines() int {
	initialRoutines := runtime.NumCPU() * 2
	if initialRoutines <= 0 {
		initialRoutines = 4
	}
	return initialRoutines
}

func (opts Options) routines() int {
	if opts.NumRoutines <= 0 {
		return DefaultRoutines()
	}
	return opts.NumRoutines
}

func (opts Options) validate() error {
	return NewRequest(LatLon{}, opts.Zoom, opts.Scale).Validate()
}

// ScaleZoom returns the number of zoom levels an image scale adds, that is
// log2(scale).
func ScaleZoom(scale int) int {
	res := 0
	for s := scale; s > 1; s >>= 1 {
		res++
	}
	return res
}

// Result is a constructed image.
type Result struct {
	Image *image.RGBA

	// Coordinates are the coordinates of each pixel in Image, nil if not
	// requested.
	Coordinates *CoordinateGrid

	Grid *TileGrid

	Zoom, Scale int

	// PixelMin and PixelMax are the pixel area (at Zoom) covered by Image,
	// PixelMax is exclusive.
	PixelMin, PixelMax PixelCoord
}

// Construct retrieves all images covering area and stitches them together.
// The result covers exactly the pixels of area at the zoom level (with
// FullTiles the complete tiles).
func Construct(ctx context.Context, fetcher Fetcher, area Area, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	area = area.Normalize()
	p1 := LatLonToPixel(area.North, area.West, opts.Zoom)
	p2 := LatLonToPixel(area.South, area.East, opts.Zoom)
	return ConstructPixels(ctx, fetcher, p1, p2, opts)
}

// ConstructPixels works as Construct but the area is given in pixels at the
// zoom level. p2 is exclusive.
func ConstructPixels(ctx context.Context, fetcher Fetcher, p1, p2 PixelCoord, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Square {
		p1, p2 = SquarifyPixels(p1, p2)
	}
	if p2.Y <= p1.Y || p2.X <= p1.X {
		return nil, errors.Wrapf(ErrEmptyArea, "pixels %v to %v at zoom %d", p1, p2, opts.Zoom)
	}
	if err := CheckTileLimit(p1, p2, opts.Scale, opts.MaxTiles); err != nil {
		return nil, err
	}
	start := time.Now()
	grid := PlanTiles(p1, p2, opts.Zoom, opts.Scale)
	log.WithFields(log.Fields{
		"zoom":  opts.Zoom,
		"scale": opts.Scale,
		"rows":  grid.Rows(),
		"cols":  grid.Cols(),
	}).Info("Constructing image")

	stitched, err := composeTiles(ctx, fetcher, grid, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Grid:  grid,
		Zoom:  opts.Zoom,
		Scale: opts.Scale,
	}
	if opts.FullTiles {
		res.Image = stitched
		res.PixelMin = grid.Origin()
		res.PixelMax = PixelCoord{
			Y: res.PixelMin.Y + grid.Rows()*TileStep,
			X: res.PixelMin.X + grid.Cols()*TileStep,
		}
	} else {
		res.Image = cropRGBA(stitched, grid.Crop())
		res.PixelMin, res.PixelMax = p1, p2
	}

	if opts.Coordinates {
		bounds := res.Image.Bounds()
		origin := PixelCoord{Y: opts.Scale * res.PixelMin.Y, X: opts.Scale * res.PixelMin.X}
		coords, coordsErr := NewCoordinateGrid(ctx, origin, bounds.Dy(), bounds.Dx(),
			opts.Zoom+ScaleZoom(opts.Scale), opts.routines())
		if coordsErr != nil {
			return nil, errors.Wrap(coordsErr, "can't compute pixel coordinates")
		}
		res.Coordinates = coords
	}
	imagesConstructed.Inc()
	log.WithFields(log.Fields{
		"size":     res.Image.Bounds().Size(),
		"duration": time.Since(start),
	}).Info("Image constructed")
	return res, nil
}

// composeTiles fetches all tiles of the grid concurrently and pastes them
// into one image.
func composeTiles(ctx context.Context, fetcher Fetcher, grid *TileGrid, opts Options) (*image.RGBA, error) {
	size := grid.TileSizePixels()
	division := grid.Rects()
	res := image.NewRGBA(image.Rect(0, 0, grid.Cols()*size, grid.Rows()*size))

	progress := opts.Progress
	if progress == nil {
		progress = ProgressIgnore
	}
	var m sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.routines())
	for i, row := range grid.Tiles {
		for j, tile := range row {
			area := division[i][j]
			tile := tile
			g.Go(func() (err error) {
				// a panic in a fetcher must not take down the whole process
				defer func() {
					if r := recover(); r != nil {
						err = errors.Newf("tile (%d, %d): panic: %v", tile.Row, tile.Col, r)
					}
				}()
				if err := insertTile(ctx, res, area, fetcher, tile, opts); err != nil {
					return errors.Wrapf(err, "tile (%d, %d)", tile.Row, tile.Col)
				}
				m.Lock()
				done++
				progress(done)
				m.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func loadTile(ctx context.Context, fetcher Fetcher, tile Tile, cache *ImageCache) (image.Image, error) {
	key := tile.Request.CacheKey()
	if cache != nil {
		if img := cache.Get(key); img != nil {
			return img, nil
		}
	}
	data, err := fetcher.Fetch(ctx, tile.Request)
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeTile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", key)
	}
	cut, err := CutLogo(decoded, tile.Request.Scale, LogoMargin)
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", key)
	}
	if cache != nil {
		cache.Put(key, cut)
	}
	return cut, nil
}

// insertTile pastes the logo free image of the tile into the area. Areas of
// different tiles don't overlap, so this is safe for concurrent use.
func insertTile(ctx context.Context, into *image.RGBA, area image.Rectangle, fetcher Fetcher,
	tile Tile, opts Options) error {
	img, err := loadTile(ctx, fetcher, tile, opts.Cache)
	if err != nil {
		return err
	}
	if img.Bounds().Dx() != area.Dx() || img.Bounds().Dy() != area.Dy() {
		return errors.Newf("image has size %v, expected %v", img.Bounds().Size(), area.Size())
	}
	draw.Draw(into, area, img, img.Bounds().Min, draw.Src)
	return nil
}

// cropRGBA copies the area r of img into a new image starting at (0, 0).
func cropRGBA(img *image.RGBA, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	res := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(res, res.Bounds(), img, r.Min, draw.Src)
	return res
}
