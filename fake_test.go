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
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
)

// logoColor fills the border of fake images that must be cut away.
var logoColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}

// tileColor identifies a tile by its position in the world grid.
func tileColor(row, col int) color.NRGBA {
	return color.NRGBA{R: 0, G: uint8(row % 256), B: uint8(col % 256), A: 255}
}

// fakeTile returns an encoded image as returned by the API: the logo free
// part is filled with c, the border with logoColor.
func fakeTile(scale int, c color.NRGBA) ([]byte, error) {
	size := MaxResolution * scale
	margin := LogoMargin * scale
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	inner := image.Rect(margin, margin, size-margin, size-margin)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (image.Point{X: x, Y: y}).In(inner) {
				img.SetNRGBA(x, y, c)
			} else {
				img.SetNRGBA(x, y, logoColor)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fakeFetcher serves fake tiles colored by their position and counts the
// number of calls. Like the API client it rejects invalid requests.
type fakeFetcher struct {
	calls int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, r Request) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	p := LatLonToPixel(r.Center.Lat, r.Center.Lon, r.Zoom)
	return fakeTile(r.Scale, tileColor(floorDiv(p.Y, TileStep), floorDiv(p.X, TileStep)))
}

func (f *fakeFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// sameColor compares an RGBA pixel with an opaque color.
func sameColor(c color.RGBA, expected color.NRGBA) bool {
	return c.R == expected.R && c.G == expected.G && c.B == expected.B && c.A == expected.A
}
