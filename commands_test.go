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
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		expected []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"pwd", []string{"pwd"}},
		{"set zoom  18", []string{"set", "zoom", "18"}},
		{"cd \"my images\"", []string{"cd", "my images"}},
		{"cd my\\\\dir", []string{"cd", "my\\dir"}},
		{`fetch "a \"b\""`, []string{"fetch", `a "b"`}},
		{"\tarea 1 2\t3 4", []string{"area", "1", "2", "3", "4"}},
	}
	for _, tc := range tests {
		res, err := ParseCommand(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, res, tc.in)
	}

	for _, in := range []string{"cd \"unclosed", "cd a\"b\"", "cd a\\", "cd \\n"} {
		_, err := ParseCommand(in)
		assert.Error(t, err, in)
	}
}

func TestParameterized(t *testing.T) {
	r, err := Parameterized(strings.NewReader("area $1 $2\nfetch $3 $4"), "48", "7.8", "out.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "area 48 7.8\nfetch out.png ", string(data))

	args := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	data, err = io.ReadAll(ParameterizedFromStrings([]string{"$10 $1", "$2"}, args...))
	require.NoError(t, err)
	assert.Equal(t, "j a\nb", string(data))
}

// testService returns a service backed by an in-memory cache and fake tiles.
func testService(t *testing.T) (*Service, *fakeFetcher) {
	t.Helper()
	cache := openMemCache(t)
	fetcher := &fakeFetcher{}
	service := NewService(cache, nil, 2, 16)
	service.Fetcher = NewCachedFetcher(cache, fetcher)
	return service, fetcher
}

// runScript executes the script and returns the output, the error output and
// whether all commands succeeded.
func runScript(t *testing.T, service *Service, script string) (string, string, bool) {
	t.Helper()
	var out, errOut bytes.Buffer
	handler := ScriptHandler{
		Service: service,
		Source:  strings.NewReader(script),
		Out:     &out,
		ErrOut:  &errOut,
	}
	ok := Execute(handler, DefaultCommands)
	return out.String(), errOut.String(), ok
}

func TestScriptSetAndStats(t *testing.T) {
	service, _ := testService(t)
	script := "# comment\nset zoom 12\nset scale 4\nset interp 0\nstats zoom\nstats scale\nstats interp"
	out, errOut, ok := runScript(t, service, script)
	require.True(t, ok, errOut)
	assert.Equal(t, "zoom ==> 12\nscale ==> 4\ninterp ==> nearest\n", out)
}

func TestScriptErrors(t *testing.T) {
	service, _ := testService(t)
	tests := []struct {
		script string
		errOut string
	}{
		{"set scale 3", "Error while executing command"},
		{"set zoom 22", "Error while executing command"},
		{"set foo 1", "Invalid variable"},
		{"frobnicate", "Invalid command \"frobnicate\""},
		{"area 1 2 3", "Usage: area"},
		{"area 91 0 0 1", "latitude"},
		{"fetch out.png", "No area set"},
		{"set zoom \"18", "Syntax error"},
	}
	for _, tc := range tests {
		_, errOut, ok := runScript(t, service, tc.script)
		assert.False(t, ok, tc.script)
		assert.Contains(t, errOut, tc.errOut, tc.script)
	}

	// execution stops at the first error
	out, _, ok := runScript(t, service, "set scale 3\nstats scale")
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestScriptPixelsZoomChange(t *testing.T) {
	service, fetcher := testService(t)
	dir := t.TempDir()
	for _, cmd := range []string{"tiles", "fetch out.png"} {
		script := strings.Join([]string{
			"cd \"" + dir + "\"",
			"set zoom 12",
			"pixels 0 0 1000000 1000000",
			"set zoom 2",
			cmd,
		}, "\n")
		_, errOut, ok := runScript(t, service, script)
		assert.False(t, ok, cmd)
		assert.Contains(t, errOut, "outside of world image", cmd)
	}
	assert.Equal(t, 0, fetcher.Calls())
	_, err := os.Stat(filepath.Join(dir, "out.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestScriptTileLimit(t *testing.T) {
	service, fetcher := testService(t)
	for _, cmd := range []string{"tiles", "fetch out.png"} {
		script := strings.Join([]string{
			"cd \"" + t.TempDir() + "\"",
			"set verbose false",
			"set scale 1",
			"set max-tiles 3",
			"pixels 1000 2000 1700 2900",
			cmd,
		}, "\n")
		_, errOut, ok := runScript(t, service, script)
		assert.False(t, ok, cmd)
		assert.Contains(t, errOut, "too many tiles", cmd)
	}
	assert.Equal(t, 0, fetcher.Calls())

	out, errOut, ok := runScript(t, service, "set verbose false\nset scale 1\nset max-tiles 4\npixels 1000 2000 1700 2900\ntiles")
	require.True(t, ok, errOut)
	assert.Contains(t, out, "4 tiles (2 rows, 2 columns)")
}

func TestScriptCd(t *testing.T) {
	service, _ := testService(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub dir"), 0o755))
	out, errOut, ok := runScript(t, service, "cd \""+dir+"\"\ncd \"sub dir\"\npwd")
	require.True(t, ok, errOut)
	assert.Equal(t, filepath.Join(dir, "sub dir")+"\n", out)

	_, _, ok = runScript(t, service, "cd \""+filepath.Join(dir, "missing")+"\"")
	assert.False(t, ok)
}

func TestScriptFetch(t *testing.T) {
	service, fetcher := testService(t)
	dir := t.TempDir()
	script := strings.Join([]string{
		"cd \"" + dir + "\"",
		"set verbose false",
		"set zoom 12",
		"set scale 1",
		"pixels 1000 2000 1100 2100",
		"tiles tiles.geojson",
		"fetch out.png 50x",
		"coords coords.csv",
	}, "\n")
	out, errOut, ok := runScript(t, service, script)
	require.True(t, ok, errOut)
	assert.Contains(t, out, "1 tiles (1 rows, 1 columns)")
	assert.Contains(t, out, "Image (50x50) saved to "+filepath.Join(dir, "out.png"))
	assert.Equal(t, 1, fetcher.Calls())

	img, err := imaging.Open(filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	geojson, err := os.ReadFile(filepath.Join(dir, "tiles.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(geojson), "FeatureCollection")

	f, err := os.Open(filepath.Join(dir, "coords.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// header and one record per pixel of the full size image
	assert.Len(t, records, 100*100+1)
}

func TestScriptZoomAndGSD(t *testing.T) {
	service, _ := testService(t)
	out, errOut, ok := runScript(t, service, "set scale 2\nzoom 0.5 0\ngsd 0\nstats zoom")
	require.True(t, ok, errOut)
	assert.Contains(t, out, "Zoom set to 18")
	assert.Contains(t, out, "GSD at latitude 0.000000, zoom 18, scale 2")
	assert.True(t, strings.HasSuffix(out, "zoom ==> 18\n"))

	// no zoom level reaches this resolution
	_, errOut, ok = runScript(t, service, "zoom 0.0001 0")
	assert.False(t, ok)
	assert.Contains(t, errOut, "maximal zoom")
}

func TestScriptCache(t *testing.T) {
	service, fetcher := testService(t)
	dir := t.TempDir()
	key := NewRequest(LatLon{Lat: 48, Lon: 7.85}, 18, 2).CacheKey()
	data, err := fakeTile(2, tileColor(0, 0))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key), data, 0o644))

	out, errOut, ok := runScript(t, service, "cache import \""+dir+"\"\ncache list\ncache delete "+key+"\ncache")
	require.True(t, ok, errOut)
	assert.Contains(t, out, "Imported 1 images")
	assert.Contains(t, out, "  "+key)
	assert.True(t, strings.HasSuffix(out, "Total: 0 images, 0 B\n"), out)
	assert.Equal(t, 0, fetcher.Calls())
}

func TestPredefinedFetchArea(t *testing.T) {
	service, _ := testService(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "area.jpg")
	source := ParameterizedFromStrings(strings.Split(FetchArea, "\n"),
		"48.001", "7.85", "48.0", "7.852", "14", out)
	var buf, errOut bytes.Buffer
	handler := ScriptHandler{Service: service, Source: source, Out: &buf, ErrOut: &errOut}
	require.True(t, Execute(handler, DefaultCommands), errOut.String())

	img, err := imaging.Open(out)
	require.NoError(t, err)
	expected := Area{North: 48.001, West: 7.85, South: 48.0, East: 7.852}.Pixels(14)
	assert.Equal(t, 2*(expected.Max.X-expected.Min.X), img.Bounds().Dx())
	assert.Equal(t, 2*(expected.Max.Y-expected.Min.Y), img.Bounds().Dy())
}

func TestHelpCommand(t *testing.T) {
	out, errOut, ok := runScript(t, nil, "help fetch")
	require.True(t, ok, errOut)
	assert.True(t, strings.HasPrefix(out, DefaultCommands["fetch"].Usage))

	out, _, ok = runScript(t, nil, "help")
	require.True(t, ok)
	for name := range DefaultCommands {
		assert.Contains(t, out, DefaultCommands[name].Usage)
	}
}
