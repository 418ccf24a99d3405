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

// This file contains some predefined scripts that can be executed. This way
// images can be retrieved without requiring the user to know the commands.

var (
	// FetchArea retrieves an area at a fixed zoom level.
	// It is parameterized by seven parameters: north, west, south and east of
	// the area, the zoom level, the output file and the dimensions of the
	// output. Because the last element can be omitted six parameters are
	// sufficient.
	//
	// Example usage: FetchArea 48.0 7.80 47.99 7.81 18 out.png x
	FetchArea = `set zoom $5
area $1 $2 $3 $4
fetch $6 $7`

	// FetchAreaGSD is similar to FetchArea but the zoom level is derived from
	// the ground sampling distance (meters per pixel) given as fifth argument.
	//
	// Example usage: FetchAreaGSD 48.0 7.80 47.99 7.81 0.3 out.png x
	FetchAreaGSD = `area $1 $2 $3 $4
zoom $5
fetch $6 $7`
)

// PredefinedScripts maps script names to their source.
var PredefinedScripts = map[string]string{
	"FetchArea":    FetchArea,
	"FetchAreaGSD": FetchAreaGSD,
}
