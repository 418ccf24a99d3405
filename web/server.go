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

// Package web serves satellite images over HTTP.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/FabianWe/gmapsimage"
	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyHandled is returned by a HandlerFunc that already wrote the
// response.
var ErrAlreadyHandled = errors.New("Error was already handled")

// Context is shared by all handlers.
type Context struct {
	Service     *gmapsimage.Service
	Jobs        JobStorage
	NumRoutines int
	JPGQuality  int

	// MaxTiles limits the size of requested images, see
	// gmapsimage.CheckTileLimit.
	MaxTiles int

	// Registry is served on /metrics, prometheus.DefaultGatherer if nil.
	Registry prometheus.Gatherer
}

// NewContext returns a context using the service's number of routines.
func NewContext(service *gmapsimage.Service, jobs JobStorage) *Context {
	routines := service.NumRoutines
	if routines <= 0 {
		routines = gmapsimage.DefaultRoutines()
	}
	return &Context{
		Service:     service,
		Jobs:        jobs,
		NumRoutines: routines,
		JPGQuality:  90,
		MaxTiles:    service.MaxTiles,
	}
}

func (context *Context) options() gmapsimage.Options {
	return gmapsimage.Options{
		NumRoutines: context.NumRoutines,
		MaxTiles:    context.MaxTiles,
		Cache:       context.Service.Images,
	}
}

// HandlerFunc handles a request, the result is encoded as JSON. If both the
// result and the error are nil the handler wrote the response itself.
type HandlerFunc func(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error)

// requestError is an error with an http status code.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{status: http.StatusBadRequest, err: err}
}

func notFound(err error) error {
	return &requestError{status: http.StatusNotFound, err: err}
}

// statusCode returns the http status for an error returned by a handler.
func statusCode(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, gmapsimage.ErrEmptyArea), errors.Is(err, gmapsimage.ErrNoBounds),
		errors.Is(err, gmapsimage.ErrNoZoom), errors.Is(err, gmapsimage.ErrAreaTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, gmapsimage.ErrMissingAPIKey), errors.Is(err, gmapsimage.ErrRequestDenied),
		errors.Is(err, gmapsimage.ErrQuotaExceeded), errors.Is(err, gmapsimage.ErrNotAnImage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPFunc converts a HandlerFunc to an http.HandlerFunc.
func ToHTTPFunc(context *Context, handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonData, err := handler(context, w, r)
		switch {
		case errors.Is(err, ErrAlreadyHandled):
		case err != nil:
			status := statusCode(err)
			if status == http.StatusInternalServerError {
				log.WithError(err).Error("Error in request")
				http.Error(w, "Internal Server Error", status)
				return
			}
			http.Error(w, err.Error(), status)
		case jsonData != nil:
			writeJSON(w, http.StatusOK, jsonData)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	jData, jErr := json.Marshal(data)
	if jErr != nil {
		log.WithError(jErr).Error("Internal error: Can't marshal json")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jData)
}

// ImageParams are the parameters of an image, given as query parameters or
// as JSON. Either all of north, west, south and east or all of y1, x1, y2
// and x2 must be given.
type ImageParams struct {
	North *float64 `json:"north,omitempty"`
	West  *float64 `json:"west,omitempty"`
	South *float64 `json:"south,omitempty"`
	East  *float64 `json:"east,omitempty"`

	Y1 *int `json:"y1,omitempty"`
	X1 *int `json:"x1,omitempty"`
	Y2 *int `json:"y2,omitempty"`
	X2 *int `json:"x2,omitempty"`

	Zoom   int    `json:"zoom"`
	Scale  int    `json:"scale"`
	Square bool   `json:"square"`
	Full   bool   `json:"full"`
	Format string `json:"format,omitempty"`
}

// DefaultImageParams returns parameters with zoom 18, scale 2 and png.
func DefaultImageParams() ImageParams {
	return ImageParams{Zoom: 18, Scale: 2, Format: "png"}
}

// allSet reports whether all values and whether some value is not nil.
func allSet[T any](vals ...*T) (all, some bool) {
	all = true
	for _, v := range vals {
		if v == nil {
			all = false
		} else {
			some = true
		}
	}
	return
}

// Request converts the parameters.
func (p ImageParams) Request() (gmapsimage.GetImageRequest, error) {
	r := gmapsimage.GetImageRequest{
		Zoom:      p.Zoom,
		Scale:     p.Scale,
		Square:    p.Square,
		FullTiles: p.Full,
	}
	allLatLon, anyLatLon := allSet(p.North, p.West, p.South, p.East)
	allPixels, anyPixels := allSet(p.Y1, p.X1, p.Y2, p.X2)
	switch {
	case anyLatLon && anyPixels:
		return r, errors.New("provide either north, west, south, east or y1, x1, y2, x2")
	case allLatLon:
		area := gmapsimage.Area{North: *p.North, West: *p.West, South: *p.South, East: *p.East}.Normalize()
		if err := area.Validate(); err != nil {
			return r, err
		}
		r.LatLon = &area
	case allPixels:
		pixels := gmapsimage.PixelAreaFromPoints(
			gmapsimage.PixelCoord{Y: *p.Y1, X: *p.X1},
			gmapsimage.PixelCoord{Y: *p.Y2, X: *p.X2})
		r.Pixels = &pixels
	default:
		return r, gmapsimage.ErrNoBounds
	}
	sample := gmapsimage.NewRequest(gmapsimage.LatLon{}, r.Zoom, r.Scale)
	if err := sample.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// ImageFormat returns the output format, png if not set.
func (p ImageParams) ImageFormat() (imaging.Format, error) {
	if p.Format == "" {
		return imaging.PNG, nil
	}
	return gmapsimage.ParseFormat(p.Format)
}

// query wraps url values with typed getters.
type query map[string][]string

func (q query) has(key string) bool {
	vals, ok := q[key]
	return ok && len(vals) > 0 && vals[0] != ""
}

func (q query) get(key string) string {
	if !q.has(key) {
		return ""
	}
	return q[key][0]
}

func (q query) GetFloat(key string) (*float64, error) {
	if !q.has(key) {
		return nil, nil
	}
	val, err := strconv.ParseFloat(q.get(key), 64)
	if err != nil {
		return nil, errors.Newf("Entry for %s not of type float: %s", key, q.get(key))
	}
	return &val, nil
}

func (q query) GetInt(key string) (*int, error) {
	if !q.has(key) {
		return nil, nil
	}
	val, err := strconv.Atoi(q.get(key))
	if err != nil {
		return nil, errors.Newf("Entry for %s not of type int: %s", key, q.get(key))
	}
	return &val, nil
}

func (q query) GetBool(key string) (bool, error) {
	if !q.has(key) {
		return false, nil
	}
	val, err := strconv.ParseBool(q.get(key))
	if err != nil {
		return false, errors.Newf("Entry for %s not of type bool: %s", key, q.get(key))
	}
	return val, nil
}

// ParseImageQuery parses ImageParams from the query parameters of r.
func ParseImageQuery(r *http.Request) (ImageParams, error) {
	q := query(r.URL.Query())
	p := DefaultImageParams()
	var err error
	floats := map[string]**float64{"north": &p.North, "west": &p.West, "south": &p.South, "east": &p.East}
	for key, dst := range floats {
		if *dst, err = q.GetFloat(key); err != nil {
			return p, err
		}
	}
	ints := map[string]**int{"y1": &p.Y1, "x1": &p.X1, "y2": &p.Y2, "x2": &p.X2}
	for key, dst := range ints {
		if *dst, err = q.GetInt(key); err != nil {
			return p, err
		}
	}
	for key, dst := range map[string]*int{"zoom": &p.Zoom, "scale": &p.Scale} {
		val, intErr := q.GetInt(key)
		if intErr != nil {
			return p, intErr
		}
		if val != nil {
			*dst = *val
		}
	}
	if p.Square, err = q.GetBool("square"); err != nil {
		return p, err
	}
	if p.Full, err = q.GetBool("full"); err != nil {
		return p, err
	}
	if q.has("format") {
		p.Format = q.get("format")
	}
	return p, nil
}

// ProcessRequest decodes a JSON body, missing values are taken from
// DefaultImageParams.
func ProcessRequest(w http.ResponseWriter, r *http.Request) (ImageParams, error) {
	p := DefaultImageParams()
	if r.Body == nil {
		return p, badRequest(errors.New("No request body given"))
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, badRequest(errors.Newf("Invalid request, expected valid JSON, got: %s", err.Error()))
	}
	return p, nil
}

// ImageHandler constructs an image and writes it in the requested format.
func ImageHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	params, err := ParseImageQuery(r)
	if err != nil {
		return nil, badRequest(err)
	}
	req, reqErr := params.Request()
	if reqErr != nil {
		return nil, badRequest(reqErr)
	}
	format, formatErr := params.ImageFormat()
	if formatErr != nil {
		return nil, badRequest(formatErr)
	}
	result, imgErr := gmapsimage.GetImage(r.Context(), context.Service.Fetcher, req, context.options())
	if imgErr != nil {
		return nil, imgErr
	}
	if err := writeImage(w, result, format, context.JPGQuality); err != nil {
		return nil, err
	}
	return nil, nil
}

func writeImage(w http.ResponseWriter, result *gmapsimage.Result, format imaging.Format, quality int) error {
	contentType := "image/png"
	if format == imaging.JPEG {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Zoom", strconv.Itoa(result.Zoom))
	w.Header().Set("X-Scale", strconv.Itoa(result.Scale))
	if err := gmapsimage.EncodeImage(w, result.Image, format, quality); err != nil {
		log.WithError(err).Error("Can't write image")
		return ErrAlreadyHandled
	}
	return nil
}

// TilesHandler returns the tiles for an area as GeoJSON without retrieving
// them.
func TilesHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	params, err := ParseImageQuery(r)
	if err != nil {
		return nil, badRequest(err)
	}
	req, reqErr := params.Request()
	if reqErr != nil {
		return nil, badRequest(reqErr)
	}
	pixels, pixelsErr := req.PixelArea()
	if pixelsErr != nil {
		return nil, badRequest(pixelsErr)
	}
	if err := gmapsimage.CheckTileLimit(pixels.Min, pixels.Max, req.Scale, context.MaxTiles); err != nil {
		return nil, err
	}
	grid := gmapsimage.PlanTiles(pixels.Min, pixels.Max, req.Zoom, req.Scale)
	return grid.FeatureCollection(), nil
}

// GSDHandler returns the ground sampling distance for lat, zoom and scale.
func GSDHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	q := query(r.URL.Query())
	lat, latErr := q.GetFloat("lat")
	zoom, zoomErr := q.GetInt("zoom")
	scale, scaleErr := q.GetInt("scale")
	if err := errors.CombineErrors(latErr, errors.CombineErrors(zoomErr, scaleErr)); err != nil {
		return nil, badRequest(err)
	}
	if lat == nil || zoom == nil {
		return nil, badRequest(errors.New("lat and zoom are required"))
	}
	s := 1
	if scale != nil {
		s = *scale
	}
	if err := gmapsimage.NewRequest(gmapsimage.LatLon{Lat: *lat}, *zoom, s).Validate(); err != nil {
		return nil, badRequest(err)
	}
	return map[string]interface{}{
		"lat":   *lat,
		"zoom":  *zoom,
		"scale": s,
		"gsd":   gmapsimage.ComputeGSD(*lat, *zoom, s),
	}, nil
}

// ZoomHandler derives the zoom level for a goal ground sampling distance.
func ZoomHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	q := query(r.URL.Query())
	lat, latErr := q.GetFloat("lat")
	goal, goalErr := q.GetFloat("gsd")
	scale, scaleErr := q.GetInt("scale")
	deviation, devErr := q.GetFloat("deviation")
	err := errors.CombineErrors(errors.CombineErrors(latErr, goalErr), errors.CombineErrors(scaleErr, devErr))
	if err != nil {
		return nil, badRequest(err)
	}
	if lat == nil || goal == nil {
		return nil, badRequest(errors.New("lat and gsd are required"))
	}
	s, dev := 1, 0.0
	if scale != nil {
		s = *scale
	}
	if deviation != nil {
		dev = *deviation
	}
	zoom, zoomErr := gmapsimage.DeriveZoom(*lat, s, *goal, dev)
	if zoomErr != nil {
		return nil, badRequest(zoomErr)
	}
	return map[string]interface{}{
		"lat":   *lat,
		"scale": s,
		"zoom":  zoom,
		"gsd":   gmapsimage.ComputeGSD(*lat, zoom, s),
	}, nil
}

func jobFromRequest(context *Context, r *http.Request) (*Job, error) {
	id, idErr := ParseJobID(chi.URLParam(r, "id"))
	if idErr != nil {
		return nil, badRequest(idErr)
	}
	job, err := context.Jobs.Get(id)
	if err != nil {
		return nil, notFound(err)
	}
	return job, nil
}

// CreateJobHandler starts constructing an image in the background.
func CreateJobHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	params, err := ProcessRequest(w, r)
	if err != nil {
		return nil, err
	}
	req, reqErr := params.Request()
	if reqErr != nil {
		return nil, badRequest(reqErr)
	}
	if _, formatErr := params.ImageFormat(); formatErr != nil {
		return nil, badRequest(formatErr)
	}
	if err := req.CheckTileLimit(context.MaxTiles); err != nil {
		return nil, badRequest(err)
	}
	id, idErr := GenJobID()
	if idErr != nil {
		return nil, idErr
	}
	job := NewJob(id, params)
	if err := context.Jobs.Set(id, job); err != nil {
		return nil, err
	}
	go context.runJob(job, req)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": id.String()})
	return nil, nil
}

func (context *Context) runJob(job *Job, req gmapsimage.GetImageRequest) {
	var result *gmapsimage.Result
	var err error
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, errors.Newf("job panicked: %v", r)
		}
		if err != nil {
			log.WithError(err).WithField("job", job.ID.String()).Warn("Job failed")
		}
		job.finish(result, err)
	}()
	job.start()
	opts := context.options()
	opts.Progress = job.progress
	result, err = gmapsimage.GetImage(job.ctx, context.Service.Fetcher, req, opts)
}

// JobStatusHandler returns the status of a job.
func JobStatusHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	job, err := jobFromRequest(context, r)
	if err != nil {
		return nil, err
	}
	return job.Info(), nil
}

// JobImageHandler writes the image of a finished job. With encoding=base64
// the image is returned as JSON.
func JobImageHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	job, err := jobFromRequest(context, r)
	if err != nil {
		return nil, err
	}
	result, jobErr := job.Result()
	switch {
	case jobErr != nil:
		return nil, jobErr
	case result == nil:
		return nil, &requestError{status: http.StatusConflict,
			err: errors.Newf("job %s not done yet", job.ID)}
	}
	format, formatErr := job.Params.ImageFormat()
	if formatErr != nil {
		return nil, badRequest(formatErr)
	}
	if r.URL.Query().Get("encoding") == "base64" {
		enc, encErr := EncodeBase64(result.Image, format, context.JPGQuality)
		if encErr != nil {
			return nil, encErr
		}
		return map[string]string{
			"image":  enc,
			"format": fmt.Sprintf("image/%s", formatName(format)),
		}, nil
	}
	if err := writeImage(w, result, format, context.JPGQuality); err != nil {
		return nil, err
	}
	return nil, nil
}

// NewRouter returns the router serving all routes.
func NewRouter(context *Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/image", ToHTTPFunc(context, ImageHandler))
		r.Get("/tiles", ToHTTPFunc(context, TilesHandler))
		r.Get("/gsd", ToHTTPFunc(context, GSDHandler))
		r.Get("/zoom", ToHTTPFunc(context, ZoomHandler))
		r.Post("/jobs", ToHTTPFunc(context, CreateJobHandler))
		r.Get("/jobs/{id}", ToHTTPFunc(context, JobStatusHandler))
		r.Get("/jobs/{id}/image", ToHTTPFunc(context, JobImageHandler))
	})
	gatherer := context.Registry
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
