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
	"github.com/paulmach/orb/geojson"
)

// Feature returns the area as a polygon feature.
func (a Area) Feature() *geojson.Feature {
	return geojson.NewFeature(a.Bound().ToPolygon())
}

// Footprint returns the area covered by the logo free tile.
func (t Tile) Footprint(zoom int) Area {
	b := t.Bounds()
	return PixelArea{
		Min: PixelCoord{Y: b.Min.Y, X: b.Min.X},
		Max: PixelCoord{Y: b.Max.Y, X: b.Max.X},
	}.LatLon(zoom)
}

// FeatureCollection returns the footprint of each tile as polygon together
// with the requested area. Tile features have the properties row, col,
// cache_key, zoom, scale, center_lat and center_lon, the requested area
// has the property requested = true.
func (g *TileGrid) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, row := range g.Tiles {
		for _, t := range row {
			f := t.Footprint(g.Zoom).Feature()
			f.Properties["row"] = t.Row
			f.Properties["col"] = t.Col
			f.Properties["cache_key"] = t.Request.CacheKey()
			f.Properties["zoom"] = g.Zoom
			f.Properties["scale"] = g.Scale
			f.Properties["center_lat"] = t.Center().Lat
			f.Properties["center_lon"] = t.Center().Lon
			fc.Append(f)
		}
	}
	requested := PixelArea{Min: g.Min, Max: g.Max}.LatLon(g.Zoom).Feature()
	requested.Properties["requested"] = true
	fc.Append(requested)
	return fc
}
