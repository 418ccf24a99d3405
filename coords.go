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
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// CoordinateGrid stores the coordinate (upper left corner) of each pixel of
// an image. Lat and Lon have one entry per pixel, stored as (y, x).
type CoordinateGrid struct {
	Lat, Lon *mat.Dense
	// Origin is the pixel of the image's upper left corner at Zoom.
	Origin PixelCoord
	Zoom   int
}

// NewCoordinateGrid computes the coordinates of rows x cols pixels starting at
// origin. zoom is the zoom level of the pixels, for images with scale s this
// is the zoom of the request + log2(s).
//
// Rows are computed concurrently by numRoutines go routines.
func NewCoordinateGrid(ctx context.Context, origin PixelCoord, rows, cols, zoom, numRoutines int) (*CoordinateGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Newf("coordinate grid must not be empty, got %dx%d", rows, cols)
	}
	if numRoutines <= 0 {
		numRoutines = 1
	}
	lat := mat.NewDense(rows, cols, nil)
	lon := mat.NewDense(rows, cols, nil)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numRoutines)
	for y := 0; y < rows; y++ {
		y := y
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// each routine writes its own row only
			for x := 0; x < cols; x++ {
				ll, err := PixelToLatLonSecure(origin.Y+y, origin.X+x, zoom)
				if err != nil {
					return err
				}
				lat.Set(y, x, ll.Lat)
				lon.Set(y, x, ll.Lon)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &CoordinateGrid{Lat: lat, Lon: lon, Origin: origin, Zoom: zoom}, nil
}

// Dims returns the number of rows and columns.
func (c *CoordinateGrid) Dims() (rows, cols int) {
	return c.Lat.Dims()
}

// At returns the coordinate of the pixel in row y and column x.
func (c *CoordinateGrid) At(y, x int) LatLon {
	return LatLon{Lat: c.Lat.At(y, x), Lon: c.Lon.At(y, x)}
}

// WriteCSV writes one line "y,x,lat,lon" per pixel, preceded by a header.
func (c *CoordinateGrid) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "y,x,lat,lon"); err != nil {
		return errors.Wrap(err, "can't write coordinates")
	}
	rows, cols := c.Dims()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if _, err := fmt.Fprintf(bw, "%d,%d,%.8f,%.8f\n", y, x, c.Lat.At(y, x), c.Lon.At(y, x)); err != nil {
				return errors.Wrap(err, "can't write coordinates")
			}
		}
	}
	return errors.Wrap(bw.Flush(), "can't write coordinates")
}
