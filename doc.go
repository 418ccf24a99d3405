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

// Package gmapsimage retrieves satellite imagery from the Google Static Maps
// API for arbitrary areas. An area (given in lat / lon or in pixel
// coordinates at some zoom level) is divided into tiles of at most 640x640
// pixels, each tile is requested (or read from a cache), the Google logo is
// cut away and the tiles are stitched together into one image.
//
// Besides the image it can compute the lat / lon coordinate of each pixel,
// the ground sampling distance (meters per pixel) of a zoom level and the zoom
// level required to reach a certain ground sampling distance.
//
// Retrieved tiles are stored in a cache (a directory on the filesystem by
// default, but any gocloud blob bucket works) so that requesting the same
// area twice does not query the API again.
//
// It ships with an executable to fetch images from a REPL or scripts, an HTTP
// server and a small tool printing ground sampling distances.
package gmapsimage

// Version is the version of the gmapsimage library and tools.
const Version = "0.3.0"
