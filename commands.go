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
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/nfnt/resize"
)

var (
	// ErrCmdSyntaxErr is returned by a CommandFunc if the syntax for the command
	// is invalid.
	ErrCmdSyntaxErr = errors.New("Invalid command syntax")

	// ErrNoArea is returned by commands that require an area if neither
	// "area" nor "pixels" was used before.
	ErrNoArea = errors.New("No area set, use \"area\" or \"pixels\"")
)

// ExecutorState is the state during a CommandHandler execution, see that
// type for more details of the workflow.
//
// The variables in the state are shared among the executions of the command
// functions.
type ExecutorState struct {
	// WorkingDir is the current directory. It must always be an absolute path.
	WorkingDir string

	// Service is used to retrieve images.
	Service *Service

	// Context is passed to all blocking operations.
	Context context.Context

	// Area is the area set by the "area" command, nil if not set.
	Area *Area

	// Pixels is the area set by the "pixels" command, nil if not set.
	// Only one of Area and Pixels is set.
	Pixels *PixelArea

	// LastResult is the image constructed by the last "fetch".
	LastResult *Result

	// Option / config part

	Zoom  int
	Scale int

	// Square enlarges the area to a square.
	Square bool

	// FullTiles keeps complete tiles instead of cropping to the area.
	FullTiles bool

	// Coordinates computes the coordinate of each pixel during fetch.
	Coordinates bool

	// GoalGSD and Deviation are used by "zoom" if no argument is given.
	GoalGSD   float64
	Deviation float64

	// JPGQuality is the quality between 1 and 100 used when storing images.
	JPGQuality int

	// InterP is the interpolation function used when resizing the output.
	InterP resize.InterpolationFunction

	// NumRoutines is the number of go routines used to fetch tiles.
	NumRoutines int

	// MaxTiles limits the size of an image, see CheckTileLimit.
	MaxTiles int

	// Verbose is true if detailed output should be generated.
	Verbose bool

	// In is the source to read commands from (line by line).
	In io.Reader

	// Out is used to write state information.
	Out io.Writer
}

// NewExecutorState returns a state with default values. The working
// directory is the current directory.
func NewExecutorState(service *Service, in io.Reader, out io.Writer) (*ExecutorState, error) {
	dir, err := filepath.Abs(".")
	if err != nil {
		return nil, errors.Wrap(err, "Unable to retrieve path")
	}
	routines, maxTiles := DefaultRoutines(), 0
	if service != nil && service.NumRoutines > 0 {
		routines = service.NumRoutines
	}
	if service != nil {
		maxTiles = service.MaxTiles
	}
	return &ExecutorState{
		WorkingDir:  dir,
		Service:     service,
		Context:     context.Background(),
		Zoom:        18,
		Scale:       2,
		GoalGSD:     0.5,
		JPGQuality:  100,
		InterP:      resize.Lanczos3,
		NumRoutines: routines,
		MaxTiles:    maxTiles,
		Verbose:     true,
		In:          in,
		Out:         out,
	}, nil
}

// GetPath returns the absolute path given some other path.
// The idea is the following: If the user inputs a path we have two cases:
// The user used an absolute path, in this case we use this absolute path
// to perform tasks with.
// If it is a relative path we join the working directory with this path
// and thus retrieve the absolute path we work on.
//
// The home directory can be used like on Unix: ~/Pictures is the Pictures
// directory in the home directory of the user.
func (state *ExecutorState) GetPath(path string) (string, error) {
	res, pathErr := homedir.Expand(path)
	if pathErr != nil {
		return "", pathErr
	}
	if !filepath.IsAbs(res) {
		res = filepath.Join(state.WorkingDir, res)
	}
	return filepath.Abs(res)
}

// validatePixels checks that the pixel area lies within the world image at
// the zoom level.
func validatePixels(p PixelArea, zoom int) error {
	limit := PixelCount(zoom)
	for _, v := range []int{p.Min.Y, p.Min.X, p.Max.Y, p.Max.X} {
		if v < 0 || v > limit {
			return errors.Newf("Pixel %d outside of world image (0 to %d) at zoom %d", v, limit, zoom)
		}
	}
	return nil
}

// PixelArea returns the current area in pixels at the state's zoom level.
// Pixels are interpreted at the current zoom, so they're checked again in
// case the zoom changed after "pixels".
func (state *ExecutorState) PixelArea() (PixelArea, error) {
	switch {
	case state.Pixels != nil:
		if err := validatePixels(*state.Pixels, state.Zoom); err != nil {
			return PixelArea{}, err
		}
		return *state.Pixels, nil
	case state.Area != nil:
		return state.Area.Pixels(state.Zoom), nil
	default:
		return PixelArea{}, ErrNoArea
	}
}

// ImageRequest returns the request for the current area and options.
func (state *ExecutorState) ImageRequest() (GetImageRequest, error) {
	r := GetImageRequest{
		Zoom:        state.Zoom,
		Scale:       state.Scale,
		Pixels:      state.Pixels,
		LatLon:      state.Area,
		FullTiles:   state.FullTiles,
		Square:      state.Square,
		Coordinates: state.Coordinates,
	}
	if r.Pixels == nil && r.LatLon == nil {
		return r, ErrNoArea
	}
	if r.Pixels != nil {
		if err := validatePixels(*r.Pixels, r.Zoom); err != nil {
			return r, err
		}
	}
	return r, nil
}

// centerLat returns the latitude of the current area, 0 if none is set.
func (state *ExecutorState) centerLat() float64 {
	switch {
	case state.Area != nil:
		return state.Area.Center().Lat
	case state.Pixels != nil:
		return state.Pixels.LatLon(state.Zoom).Center().Lat
	default:
		return 0
	}
}

// CommandFunc is a function that is applied to the current states and
// arguments to that command.
type CommandFunc func(state *ExecutorState, args ...string) error

// Command a command consists of a function to actually execute the command
// and some information about the command.
type Command struct {
	Exec        CommandFunc
	Usage       string
	Description string
}

// CommandMap maps command names to Commands.
type CommandMap map[string]Command

// DefaultCommands contains all commands of the gmapsimage tool.
var DefaultCommands CommandMap

// CommandHandler together with Execute implements a high-level command
// execution loop. CommandFuncs are applied to the current state until there
// are no more commands to execute (no more input).
//
// A command has the form "COMMAND ARG1 ... ARGN" where COMMAND is the command
// name and ARG1 to ARGN are the arguments for the command.
//
// Here's a rough summary of what Execute will do:
// First it creates an initial state by calling Init. After that it immediately
// calls Start to notify the handler that the execution begins.
//
// Before a command is executed the Before method is called to notify the
// handler that a command will be executed.
//
// Then a loop will begin that reads all lines from the state's reader.
// If there is a command line the line will be parsed, if an error during
// parsing occurred the handler gets notified via OnParseErr. This method
// should return true if the execution should continue despite the error.
// Then a lookup in the provided command map happens: If the command was
// found the corresponding Command object is executed. If it was not found
// the OnInvalidCmd function is called on the handler. Again it should return
// true if the execution should continue despite the error. If this execution
// was successful the OnSuccess function is called with the executed command.
// If the execution was unsuccessful the OnError function will be called.
// Commands should return ErrCmdSyntaxErr if the syntax of the command is
// incorrect (for example invalid number of arguments) and OnError can do
// special handling in this case. Again OnError returns true if execution should
// continue.
// OnScanErr is called if there is an error while reading a command line from
// the state's reader.
//
// Lines starting with # are comments.
type CommandHandler interface {
	Init() (*ExecutorState, error)
	Start(s *ExecutorState)
	Before(s *ExecutorState)
	After(s *ExecutorState)
	OnParseErr(s *ExecutorState, err error) bool
	OnInvalidCmd(s *ExecutorState, cmd string) bool
	OnSuccess(s *ExecutorState, cmd Command)
	OnError(s *ExecutorState, err error, cmd Command) bool
	OnScanErr(s *ExecutorState, err error)
}

// Execute implements the high-level execution loop as described in the
// documentation of CommandHandler. commandMap is used to lookup commands.
// It returns false if execution was stopped because of an error.
func Execute(handler CommandHandler, commandMap CommandMap) bool {
	state, initErr := handler.Init()
	if initErr != nil {
		handler.OnScanErr(state, initErr)
		return false
	}
	handler.Start(state)
	scanner := bufio.NewScanner(state.In)
	for scanner.Scan() {
		handler.Before(state)
		if !executeLine(handler, commandMap, state, scanner.Text()) {
			return false
		}
		handler.After(state)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		handler.OnScanErr(state, scanErr)
		return false
	}
	return true
}

func executeLine(handler CommandHandler, commandMap CommandMap, state *ExecutorState, line string) bool {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return true
	}
	parsedCmd, parseErr := ParseCommand(line)
	if parseErr != nil {
		return handler.OnParseErr(state, parseErr)
	}
	if len(parsedCmd) == 0 {
		return true
	}
	cmd := parsedCmd[0]
	nextCmd, ok := commandMap[cmd]
	if !ok {
		return handler.OnInvalidCmd(state, cmd)
	}
	if execErr := nextCmd.Exec(state, parsedCmd[1:]...); execErr != nil {
		return handler.OnError(state, execErr, nextCmd)
	}
	handler.OnSuccess(state, nextCmd)
	return true
}

func isEOF(r []rune, i int) bool {
	return i == len(r)
}

// ParseCommand parses a command of the form "COMMAND ARG1 ... ARGN".
// Examples:
//
// foo bar is the command "foo" with argument "bar". Arguments might also
// be enclosed in quotes, so foo "bar bar" is parsed as command foo with
// argument bar bar (a single argument).
func ParseCommand(s string) ([]string, error) {
	parseErr := errors.New("Error parsing command line")
	res := make([]string, 0)
	// basically this is a deterministic automaton with five states:
	// 0: between arguments, 1: inside an unquoted argument, 2: after \ in an
	// unquoted argument, 3: inside "", 4: after \ inside ""
	r := []rune(s)
	state, i := 0, 0
	currentArg := make([]rune, 0)
L:
	for ; i <= len(r); i++ {
		switch state {
		case 0:
			if isEOF(r, i) {
				break L
			}
			switch r[i] {
			case ' ', '\t':
				// do nothing, just remain in state
			case '\\':
				state = 2
			case '"':
				state = 3
			default:
				currentArg = append(currentArg, r[i])
				state = 1
			}
		case 1:
			if isEOF(r, i) {
				break L
			}
			switch r[i] {
			case ' ', '\t':
				res = append(res, string(currentArg))
				currentArg = currentArg[:0]
				state = 0
			case '\\':
				state = 2
			case '"':
				return nil, parseErr
			default:
				currentArg = append(currentArg, r[i])
			}
		case 2:
			if isEOF(r, i) {
				return nil, parseErr
			}
			switch r[i] {
			case '\\', '"':
				currentArg = append(currentArg, r[i])
				state = 1
			default:
				return nil, parseErr
			}
		case 3:
			if isEOF(r, i) {
				return nil, parseErr
			}
			switch r[i] {
			case '"':
				res = append(res, string(currentArg))
				currentArg = currentArg[:0]
				state = 0
			case '\\':
				state = 4
			default:
				currentArg = append(currentArg, r[i])
			}
		case 4:
			if isEOF(r, i) {
				return nil, parseErr
			}
			switch r[i] {
			case '\\', '"':
				currentArg = append(currentArg, r[i])
				state = 3
			default:
				return nil, parseErr
			}
		}
	}
	if len(currentArg) > 0 {
		res = append(res, string(currentArg))
	}
	return res, nil
}

// PwdCommand is a command that prints the current working directory.
func PwdCommand(state *ExecutorState, args ...string) error {
	fmt.Fprintln(state.Out, state.WorkingDir)
	return nil
}

func (state *ExecutorState) variables() map[string]interface{} {
	area := "none"
	switch {
	case state.Area != nil:
		area = state.Area.String()
	case state.Pixels != nil:
		area = fmt.Sprintf("%v to %v", state.Pixels.Min, state.Pixels.Max)
	}
	return map[string]interface{}{
		"routines":     state.NumRoutines,
		"max-tiles":    state.MaxTiles,
		"verbose":      state.Verbose,
		"zoom":         state.Zoom,
		"scale":        state.Scale,
		"square":       state.Square,
		"full":         state.FullTiles,
		"coords":       state.Coordinates,
		"gsd":          fmt.Sprintf("%.3f m", state.GoalGSD),
		"deviation":    fmt.Sprintf("%.3f m", state.Deviation),
		"jpeg-quality": state.JPGQuality,
		"interp":       InterPString(state.InterP),
		"area":         area,
	}
}

// StatsCommand is a command that prints variable / value pairs.
func StatsCommand(state *ExecutorState, args ...string) error {
	m := state.variables()
	if len(args) == 1 {
		if val, has := m[args[0]]; has {
			fmt.Fprintf(state.Out, "%s ==> %v\n", args[0], val)
			return nil
		}
		return errors.Newf("Unknown variable %s", args[0])
	}
	// keep order deterministic
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, variable := range keys {
		fmt.Fprintf(state.Out, "%s ==> %v\n", variable, m[variable])
	}
	return nil
}

func parseBoolVar(name, valueStr string) (bool, error) {
	val, parseErr := strconv.ParseBool(valueStr)
	if parseErr != nil {
		return false, errors.Newf("Invalid value for %s (must be true or false): %s", name, parseErr.Error())
	}
	return val, nil
}

func parseIntVar(name, valueStr string, min, max int) (int, error) {
	val, parseErr := strconv.Atoi(valueStr)
	if parseErr != nil {
		return -1, errors.Newf("Invalid value for %s (must be int between %d and %d): %s",
			name, min, max, parseErr.Error())
	}
	if val < min || val > max {
		return -1, errors.Newf("Invalid value for %s (must be int between %d and %d): %d",
			name, min, max, val)
	}
	return val, nil
}

func parsePositiveFloatVar(name, valueStr string, allowZero bool) (float64, error) {
	val, parseErr := strconv.ParseFloat(valueStr, 64)
	if parseErr != nil {
		return -1, errors.Newf("Invalid value for %s (must be a number): %s", name, parseErr.Error())
	}
	if val < 0 || (val == 0 && !allowZero) {
		return -1, errors.Newf("Invalid value for %s (must be positive): %f", name, val)
	}
	return val, nil
}

// SetVarCommand sets a variable to a new value.
func SetVarCommand(state *ExecutorState, args ...string) error {
	if len(args) != 2 {
		return errors.New("Invalid set syntax: Requires variable and value. For a list of variables use \"stats\"")
	}
	name, valueStr := args[0], args[1]
	var err error
	switch name {
	case "routines":
		state.NumRoutines, err = parseIntVar(name, valueStr, 1, 1024)
	case "max-tiles":
		state.MaxTiles, err = parseIntVar(name, valueStr, -1, math.MaxInt32)
	case "verbose":
		state.Verbose, err = parseBoolVar(name, valueStr)
	case "zoom":
		state.Zoom, err = parseIntVar(name, valueStr, 0, MaxZoom)
	case "scale":
		var scale int
		scale, err = parseIntVar(name, valueStr, 1, 4)
		if err == nil && scale == 3 {
			err = errors.New("Invalid value for scale (must be 1, 2 or 4): 3")
		}
		if err == nil {
			state.Scale = scale
		}
	case "square":
		state.Square, err = parseBoolVar(name, valueStr)
	case "full":
		state.FullTiles, err = parseBoolVar(name, valueStr)
	case "coords":
		state.Coordinates, err = parseBoolVar(name, valueStr)
	case "gsd":
		state.GoalGSD, err = parsePositiveFloatVar(name, valueStr, false)
	case "deviation":
		state.Deviation, err = parsePositiveFloatVar(name, valueStr, true)
	case "jpeg-quality":
		state.JPGQuality, err = parseIntVar(name, valueStr, 1, 100)
	case "interp":
		state.InterP, err = parseInterP(valueStr)
	default:
		return errors.Newf("Invalid variable \"%s\". For a list use \"stats\"", name)
	}
	return err
}

// parseInterP accepts a quality number (see GetInterP) or a name (see
// InterPString).
func parseInterP(s string) (resize.InterpolationFunction, error) {
	if val, parseErr := strconv.Atoi(s); parseErr == nil {
		if val < 0 {
			return resize.Lanczos3, errors.Newf("Invalid value for interpolation function, must be integer >= 0: %d", val)
		}
		return GetInterP(uint(val)), nil
	}
	return InterPFromString(s)
}

// CdCommand is a command that changes the current directory.
func CdCommand(state *ExecutorState, args ...string) error {
	if len(args) != 1 {
		return ErrCmdSyntaxErr
	}
	path, pathErr := state.GetPath(args[0])
	if pathErr != nil {
		return errors.Wrap(pathErr, "Changing directory failed")
	}
	fi, statErr := os.Stat(path)
	if statErr != nil {
		return errors.Wrap(statErr, "Changing directory failed")
	}
	if !fi.IsDir() {
		return errors.Newf("Changing directory failed: \"%s\" is not a directory", path)
	}
	state.WorkingDir = path
	return nil
}

// AreaCommand sets the current area: area <north> <west> <south> <east>.
// The borders may be given in any order, they're normalized.
func AreaCommand(state *ExecutorState, args ...string) error {
	if len(args) != 4 {
		return ErrCmdSyntaxErr
	}
	vals, err := ParseFloats(args...)
	if err != nil {
		return err
	}
	area := Area{North: vals[0], West: vals[1], South: vals[2], East: vals[3]}.Normalize()
	if validErr := area.Validate(); validErr != nil {
		return validErr
	}
	state.Area, state.Pixels = &area, nil
	if state.Verbose {
		p := area.Pixels(state.Zoom)
		fmt.Fprintf(state.Out, "Area %s, %dx%d pixels at zoom %d\n", area,
			p.Max.X-p.Min.X, p.Max.Y-p.Min.Y, state.Zoom)
	}
	return nil
}

// PixelsCommand sets the current area in pixels at the current zoom:
// pixels <y1> <x1> <y2> <x2>.
func PixelsCommand(state *ExecutorState, args ...string) error {
	if len(args) != 4 {
		return ErrCmdSyntaxErr
	}
	vals, err := ParseInts(args...)
	if err != nil {
		return err
	}
	p := PixelAreaFromPoints(PixelCoord{Y: vals[0], X: vals[1]}, PixelCoord{Y: vals[2], X: vals[3]})
	if err := validatePixels(p, state.Zoom); err != nil {
		return err
	}
	state.Pixels, state.Area = &p, nil
	if state.Verbose {
		fmt.Fprintf(state.Out, "Area %s\n", p.LatLon(state.Zoom))
	}
	return nil
}

// GSDCommand prints the ground sampling distance: gsd [lat].
// Without lat the center of the current area (or the equator) is used.
func GSDCommand(state *ExecutorState, args ...string) error {
	lat := state.centerLat()
	switch len(args) {
	case 0:
	case 1:
		vals, err := ParseFloats(args[0])
		if err != nil {
			return err
		}
		lat = vals[0]
	default:
		return ErrCmdSyntaxErr
	}
	fmt.Fprintf(state.Out, "GSD at latitude %.6f, zoom %d, scale %d: %.4f m/pixel\n",
		lat, state.Zoom, state.Scale, ComputeGSD(lat, state.Zoom, state.Scale))
	return nil
}

// ZoomCommand derives and sets the zoom level for a ground sampling distance:
// zoom [gsd] [lat].
func ZoomCommand(state *ExecutorState, args ...string) error {
	if len(args) > 2 {
		return ErrCmdSyntaxErr
	}
	vals, err := ParseFloats(args...)
	if err != nil {
		return err
	}
	goal, lat := state.GoalGSD, state.centerLat()
	if len(vals) > 0 {
		goal = vals[0]
	}
	if len(vals) > 1 {
		lat = vals[1]
	}
	zoom, zoomErr := DeriveZoom(lat, state.Scale, goal, state.Deviation)
	if zoomErr != nil {
		return zoomErr
	}
	if zoom > MaxZoom {
		return errors.Newf("Required zoom %d is larger than the maximal zoom %d", zoom, MaxZoom)
	}
	state.Zoom = zoom
	fmt.Fprintf(state.Out, "Zoom set to %d (%.4f m/pixel)\n", zoom, ComputeGSD(lat, zoom, state.Scale))
	return nil
}

// TilesCommand prints the tiles required for the current area: tiles [out].
// If out is given the tiles are written as GeoJSON.
func TilesCommand(state *ExecutorState, args ...string) error {
	if len(args) > 1 {
		return ErrCmdSyntaxErr
	}
	p, err := state.PixelArea()
	if err != nil {
		return err
	}
	if state.Square {
		p.Min, p.Max = SquarifyPixels(p.Min, p.Max)
	}
	if limitErr := CheckTileLimit(p.Min, p.Max, state.Scale, state.MaxTiles); limitErr != nil {
		return limitErr
	}
	grid := PlanTiles(p.Min, p.Max, state.Zoom, state.Scale)
	fmt.Fprintf(state.Out, "%d tiles (%d rows, %d columns)\n", grid.Size(), grid.Rows(), grid.Cols())
	if state.Verbose {
		for _, r := range grid.Requests() {
			fmt.Fprintf(state.Out, "  %s\n", r.CacheKey())
		}
	}
	if len(args) == 0 {
		return nil
	}
	outPath, pathErr := state.GetPath(args[0])
	if pathErr != nil {
		return pathErr
	}
	data, jsonErr := grid.FeatureCollection().MarshalJSON()
	if jsonErr != nil {
		return errors.Wrap(jsonErr, "can't encode tiles")
	}
	if writeErr := os.WriteFile(outPath, data, 0644); writeErr != nil {
		return errors.Wrapf(writeErr, "can't write %s", outPath)
	}
	fmt.Fprintln(state.Out, "Tiles saved to", outPath)
	return nil
}

// FetchCommand constructs the image of the current area and saves it:
// fetch <out> [dimension]. dimension is of the form "WxH", "Wx" or "xH",
// missing values keep the ratio.
func FetchCommand(state *ExecutorState, args ...string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrCmdSyntaxErr
	}
	if state.Service == nil {
		return errors.New("No service configured")
	}
	outPath, pathErr := state.GetPath(args[0])
	if pathErr != nil {
		return pathErr
	}
	if _, formatErr := ParseFormat(outPath); formatErr != nil {
		return formatErr
	}
	width, height := -1, -1
	if len(args) == 2 {
		var dimErr error
		width, height, dimErr = ParseDimensionsEmpty(args[1])
		if dimErr != nil {
			return dimErr
		}
	}
	r, reqErr := state.ImageRequest()
	if reqErr != nil {
		return reqErr
	}
	start := time.Now()
	opts := Options{NumRoutines: state.NumRoutines, MaxTiles: state.MaxTiles, Cache: state.Service.Images}
	if state.Verbose {
		fmt.Fprintln(state.Out, "Retrieving images")
		opts.Progress = func(num int) {
			fmt.Fprintf(state.Out, "  %d tiles done\n", num)
		}
	}
	result, err := GetImage(state.Context, state.Service.Fetcher, r, opts)
	if err != nil {
		return err
	}
	state.LastResult = result
	if state.Verbose {
		fmt.Fprintln(state.Out, "Construction took", time.Since(start))
	}
	out, resizeErr := ResizeToDimensions(NewNfntResizer(state.InterP), result.Image, width, height)
	if resizeErr != nil {
		return resizeErr
	}
	if writeErr := SaveImage(outPath, out, state.JPGQuality); writeErr != nil {
		return writeErr
	}
	fmt.Fprintf(state.Out, "Image (%dx%d) saved to %s\n", out.Bounds().Dx(), out.Bounds().Dy(), outPath)
	return nil
}

// CoordsCommand writes the pixel coordinates of the last fetched image as
// CSV: coords <out>. If the coordinates were not computed during fetch they
// are computed now.
func CoordsCommand(state *ExecutorState, args ...string) error {
	if len(args) != 1 {
		return ErrCmdSyntaxErr
	}
	res := state.LastResult
	if res == nil {
		return errors.New("No image fetched yet, use \"fetch\"")
	}
	if res.Coordinates == nil {
		bounds := res.Image.Bounds()
		origin := PixelCoord{Y: res.Scale * res.PixelMin.Y, X: res.Scale * res.PixelMin.X}
		coords, err := NewCoordinateGrid(state.Context, origin, bounds.Dy(), bounds.Dx(),
			res.Zoom+ScaleZoom(res.Scale), state.NumRoutines)
		if err != nil {
			return err
		}
		res.Coordinates = coords
	}
	outPath, pathErr := state.GetPath(args[0])
	if pathErr != nil {
		return pathErr
	}
	f, createErr := os.Create(outPath)
	if createErr != nil {
		return errors.Wrapf(createErr, "can't create %s", outPath)
	}
	defer f.Close()
	if err := res.Coordinates.WriteCSV(f); err != nil {
		return err
	}
	fmt.Fprintln(state.Out, "Coordinates saved to", outPath)
	return nil
}

// CacheCommand administrates the tile cache. Without arguments it prints the
// number of images in the cache, "list" prints each image, "import <dir>
// [recursive]" copies images from a directory and "delete <key>" removes an
// image.
func CacheCommand(state *ExecutorState, args ...string) error {
	if state.Service == nil {
		return errors.New("No service configured")
	}
	cache := state.Service.Cache
	ctx := state.Context
	switch {
	case len(args) == 0, args[0] == "list":
		entries, err := cache.List(ctx)
		if err != nil {
			return err
		}
		var total int64
		for _, e := range entries {
			total += e.Size
			if len(args) > 0 {
				fmt.Fprintf(state.Out, "  %s (%s)\n", e.Key, humanize.Bytes(uint64(e.Size)))
			}
		}
		fmt.Fprintf(state.Out, "Total: %d images, %s\n", len(entries), humanize.Bytes(uint64(total)))
		return nil
	case args[0] == "import":
		if len(args) < 2 || len(args) > 3 {
			return ErrCmdSyntaxErr
		}
		dir, pathErr := state.GetPath(args[1])
		if pathErr != nil {
			return pathErr
		}
		recursive := false
		if len(args) == 3 {
			var boolErr error
			if recursive, boolErr = parseBoolVar("recursive", args[2]); boolErr != nil {
				return boolErr
			}
		}
		res, err := ImportDirectory(ctx, cache, dir, recursive)
		if err != nil {
			return err
		}
		fmt.Fprintf(state.Out, "Imported %d images (%s), skipped %d files\n",
			res.Imported, humanize.Bytes(uint64(res.Bytes)), res.Skipped)
		return nil
	case args[0] == "delete":
		if len(args) != 2 {
			return ErrCmdSyntaxErr
		}
		return cache.Delete(ctx, args[1])
	default:
		return ErrCmdSyntaxErr
	}
}

// HelpCommand prints the usage of all commands or of a single command.
func HelpCommand(state *ExecutorState, args ...string) error {
	if len(args) == 1 {
		cmd, has := DefaultCommands[args[0]]
		if !has {
			return errors.Newf("Unknown command \"%s\"", args[0])
		}
		fmt.Fprintf(state.Out, "%s\n\n%s\n", cmd.Usage, cmd.Description)
		return nil
	}
	names := make([]string, 0, len(DefaultCommands))
	for name := range DefaultCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(state.Out, "  %s\n", DefaultCommands[name].Usage)
	}
	return nil
}

func init() {
	DefaultCommands = make(map[string]Command, 20)
	DefaultCommands["pwd"] = Command{
		Exec:        PwdCommand,
		Usage:       "pwd",
		Description: "Show current working directory.",
	}
	DefaultCommands["stats"] = Command{
		Exec:        StatsCommand,
		Usage:       "stats [var]",
		Description: "Show value of variables that can be changed via set, if var is given only value of that variable",
	}
	DefaultCommands["set"] = Command{
		Exec:  SetVarCommand,
		Usage: "set <variable> <value>",
		Description: "Set value for a variable. Variables are routines, max-tiles, verbose," +
			" zoom, scale (1, 2 or 4), square, full, coords, gsd (goal in meters" +
			" per pixel), deviation, jpeg-quality and interp.",
	}
	DefaultCommands["cd"] = Command{
		Exec:        CdCommand,
		Usage:       "cd <dir>",
		Description: "Change working directory to the specified directory",
	}
	DefaultCommands["area"] = Command{
		Exec:  AreaCommand,
		Usage: "area <north> <west> <south> <east>",
		Description: "Set the area to retrieve in degrees. The area is converted" +
			" to pixels at the current zoom when fetching.",
	}
	DefaultCommands["pixels"] = Command{
		Exec:        PixelsCommand,
		Usage:       "pixels <y1> <x1> <y2> <x2>",
		Description: "Set the area to retrieve in pixels at the current zoom level.",
	}
	DefaultCommands["gsd"] = Command{
		Exec:  GSDCommand,
		Usage: "gsd [lat]",
		Description: "Print the ground sampling distance (meters per pixel) at the" +
			" current zoom and scale. Without lat the center of the area is used.",
	}
	DefaultCommands["zoom"] = Command{
		Exec:  ZoomCommand,
		Usage: "zoom [gsd] [lat]",
		Description: "Set the zoom level to reach the ground sampling distance gsd" +
			" (default is the variable gsd) at latitude lat.",
	}
	DefaultCommands["tiles"] = Command{
		Exec:  TilesCommand,
		Usage: "tiles [out.geojson]",
		Description: "Print the images required for the current area, if a file" +
			" is given the tile footprints are saved as GeoJSON.",
	}
	DefaultCommands["fetch"] = Command{
		Exec:  FetchCommand,
		Usage: "fetch <out> [dimension]",
		Description: "Retrieve the current area and save it to out (.jpg or .png)." +
			" dimension is optional and describes the dimensions of the output image," +
			" for example 1024x768. A value can be omitted and the ratio is retained:" +
			" \"1024x\" or \"x768\".",
	}
	DefaultCommands["coords"] = Command{
		Exec:        CoordsCommand,
		Usage:       "coords <out.csv>",
		Description: "Save the coordinate of each pixel of the last fetched image as CSV.",
	}
	DefaultCommands["cache"] = Command{
		Exec:  CacheCommand,
		Usage: "cache [list] or cache import <dir> [recursive] or cache delete <key>",
		Description: "Administrate the tile cache. import copies images named by" +
			" their cache key (image_lat=...png) from a directory into the cache.",
	}
	DefaultCommands["help"] = Command{
		Exec:        HelpCommand,
		Usage:       "help [command]",
		Description: "Show all commands or the description of a command.",
	}
}

// ReplHandler implements CommandHandler by reading commands from stdin and
// writing output to stdout.
type ReplHandler struct {
	Service *Service
}

// Init creates an initial ExecutorState reading from stdin.
func (h ReplHandler) Init() (*ExecutorState, error) {
	return NewExecutorState(h.Service, os.Stdin, os.Stdout)
}

func (h ReplHandler) Start(s *ExecutorState) {
	fmt.Fprintln(s.Out, "Welcome to gmapsimage", Version)
	fmt.Fprintln(s.Out, "Copyright © 2018 Fabian Wenzelmann")
	fmt.Fprintln(s.Out, "Type \"help\" for a list of commands")
	fmt.Fprint(s.Out, ">>> ")
}

func (h ReplHandler) Before(s *ExecutorState) {}

func (h ReplHandler) After(s *ExecutorState) {
	fmt.Fprint(s.Out, ">>> ")
}

func (h ReplHandler) OnParseErr(s *ExecutorState, err error) bool {
	fmt.Fprintln(s.Out, "Syntax error", err)
	return true
}

func (h ReplHandler) OnInvalidCmd(s *ExecutorState, cmd string) bool {
	fmt.Fprintf(s.Out, "Invalid command \"%s\"\n", cmd)
	return true
}

func (h ReplHandler) OnSuccess(s *ExecutorState, cmd Command) {}

func (h ReplHandler) OnError(s *ExecutorState, err error, cmd Command) bool {
	if errors.Is(err, ErrCmdSyntaxErr) {
		fmt.Fprintln(s.Out, "Invalid syntax for command.")
		fmt.Fprintln(s.Out, "Usage:", cmd.Usage)
	} else {
		fmt.Fprintln(s.Out, "Error while executing command:", err.Error())
	}
	return true
}

func (h ReplHandler) OnScanErr(s *ExecutorState, err error) {
	fmt.Fprintln(os.Stderr, "Error while reading:", err.Error())
}

// ScriptHandler implements CommandHandler. It writes the output to Out
// (stdout if nil) and reads from a specified reader. It stops whenever an
// error is encountered.
type ScriptHandler struct {
	Service *Service
	Source  io.Reader
	Out     io.Writer
	ErrOut  io.Writer
}

// NewScriptHandler returns a new script handler that reads input from the given
// source.
func NewScriptHandler(service *Service, source io.Reader) ScriptHandler {
	return ScriptHandler{Service: service, Source: source, Out: os.Stdout, ErrOut: os.Stderr}
}

func (h ScriptHandler) errOut() io.Writer {
	if h.ErrOut == nil {
		return os.Stderr
	}
	return h.ErrOut
}

// Init creates an initial ExecutorState reading from the script source.
func (h ScriptHandler) Init() (*ExecutorState, error) {
	out := h.Out
	if out == nil {
		out = os.Stdout
	}
	return NewExecutorState(h.Service, h.Source, out)
}

func (h ScriptHandler) Start(s *ExecutorState) {}

func (h ScriptHandler) Before(s *ExecutorState) {}

func (h ScriptHandler) After(s *ExecutorState) {}

func (h ScriptHandler) OnParseErr(s *ExecutorState, err error) bool {
	fmt.Fprintln(h.errOut(), "Syntax error:", err)
	return false
}

func (h ScriptHandler) OnInvalidCmd(s *ExecutorState, cmd string) bool {
	fmt.Fprintf(h.errOut(), "Invalid command \"%s\"\n", cmd)
	return false
}

func (h ScriptHandler) OnSuccess(s *ExecutorState, cmd Command) {}

func (h ScriptHandler) OnError(s *ExecutorState, err error, cmd Command) bool {
	if errors.Is(err, ErrCmdSyntaxErr) {
		fmt.Fprintln(h.errOut(), "Error: Invalid syntax for command.")
		fmt.Fprintln(h.errOut(), "Usage:", cmd.Usage)
	} else {
		fmt.Fprintln(h.errOut(), "Error while executing command:", err.Error())
	}
	return false
}

func (h ScriptHandler) OnScanErr(s *ExecutorState, err error) {
	fmt.Fprintln(h.errOut(), "Error while reading:", err.Error())
}

// ScriptHandlerFromCmds is a function to create a script handler from
// a predefined set of lines. This allows us for easy execution of predefined
// scripts.
func ScriptHandlerFromCmds(service *Service, lines []string) ScriptHandler {
	return NewScriptHandler(service, ReaderFromCmdLines(lines))
}

// ReaderFromCmdLines returns a reader for a script source that reads the
// content of the combined lines.
func ReaderFromCmdLines(lines []string) io.Reader {
	combined := strings.Join(lines, "\n")
	return strings.NewReader(combined)
}

// minPlaceholders is the number of placeholders that are always replaced,
// placeholders without an argument are removed.
const minPlaceholders = 9

func argsReplacer(args []string) *strings.Replacer {
	n := IntMax(len(args), minPlaceholders)
	// replace from the highest index s.t. $1 doesn't match the prefix of $10
	replaceArgs := make([]string, 0, 2*n)
	for i := n - 1; i >= 0; i-- {
		value := ""
		if i < len(args) {
			value = args[i]
		}
		replaceArgs = append(replaceArgs, fmt.Sprintf("$%d", i+1), value)
	}
	return strings.NewReplacer(replaceArgs...)
}

// Parameterized is used to transform parameterized commands into executable
// commands, that means replacing variables $i with the provided argument.
// Example:
// The command "fetch $1" can be called with one argument that will replace
// the placeholder $1. Placeholders $1 to $9 without an argument are replaced
// by the empty string.
//
// The current implementation works by reading the whole original reader and
// then transforming the elements, given that scripts are not too long the
// overhead should be manageable.
func Parameterized(r io.Reader, args ...string) (io.Reader, error) {
	replacer := argsReplacer(args)
	lines := make([]string, 0, 20)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, replacer.Replace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ReaderFromCmdLines(lines), nil
}

// ParameterizedFromStrings works as Parameterized, each entry of commands is
// a command line.
func ParameterizedFromStrings(commands []string, args ...string) io.Reader {
	replacer := argsReplacer(args)
	lines := make([]string, 0, len(commands))
	for _, line := range commands {
		lines = append(lines, replacer.Replace(line))
	}
	return ReaderFromCmdLines(lines)
}
