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

package main

import (
	"fmt"
	"os"
	"strconv"

	// Since we're not in the gmapsimage package we have to import it
	"github.com/FabianWe/gmapsimage"
)

// Prints the ground sampling distance of each zoom level at a latitude.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:", os.Args[0], "<LAT> [SCALE]")
		os.Exit(1)
	}
	lat, latErr := strconv.ParseFloat(os.Args[1], 64)
	if latErr != nil {
		fmt.Println("Invalid latitude:")
		fmt.Println(latErr)
		os.Exit(1)
	}
	scale := 1
	if len(os.Args) > 2 {
		var scaleErr error
		scale, scaleErr = strconv.Atoi(os.Args[2])
		if scaleErr != nil || (scale != 1 && scale != 2 && scale != 4) {
			fmt.Println("Invalid scale, must be 1, 2 or 4:", os.Args[2])
			os.Exit(1)
		}
	}
	fmt.Printf("Latitude %.6f, scale %d\n", lat, scale)
	fmt.Println("zoom   m/pixel    image width (m)")
	for zoom := 0; zoom <= gmapsimage.MaxZoom; zoom++ {
		gsd := gmapsimage.ComputeGSD(lat, zoom, scale)
		width := gsd * float64(gmapsimage.TileStep*scale)
		fmt.Printf("%4d %12.4f %16.1f\n", zoom, gsd, width)
	}
}
