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

// SquarifyPixels enlarges the pixel area between p1 (upper left) and p2
// (lower right) s.t. it becomes a square. The shorter side grows on both
// sides, the first half (rounded down) before and the remaining half after.
// The area never shrinks.
func SquarifyPixels(p1, p2 PixelCoord) (PixelCoord, PixelCoord) {
	w := p2.X - p1.X
	h := p2.Y - p1.Y
	switch {
	case h > w:
		diff := h - w
		p1.X -= diff / 2
		p2.X += diff - diff/2
	case w > h:
		diff := w - h
		p1.Y -= diff / 2
		p2.Y += diff - diff/2
	}
	return p1, p2
}

// SquarifyLatLon works as SquarifyPixels but on coordinates. Because the
// projection does not scale uniformly the coordinates are first converted to
// pixels at the given zoom, then squared and converted back.
//
// nw is the upper left corner (higher latitude, lower longitude) and se the
// lower right corner.
func SquarifyLatLon(nw, se LatLon, zoom int) (LatLon, LatLon) {
	p1 := LatLonToPixel(nw.Lat, nw.Lon, zoom)
	p2 := LatLonToPixel(se.Lat, se.Lon, zoom)
	p1, p2 = SquarifyPixels(p1, p2)
	return PixelToLatLon(float64(p1.Y), float64(p1.X), zoom),
		PixelToLatLon(float64(p2.Y), float64(p2.X), zoom)
}
