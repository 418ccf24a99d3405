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
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tilesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gmapsimage",
		Name:      "tiles_fetched_total",
		Help:      "Number of images retrieved from the Static Maps API.",
	})
	fetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gmapsimage",
		Name:      "fetch_errors_total",
		Help:      "Number of failed Static Maps requests by reason.",
	}, []string{"reason"})
	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gmapsimage",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of Static Maps requests, including retries.",
		Buckets:   prometheus.DefBuckets,
	})
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gmapsimage",
		Name:      "cache_hits_total",
		Help:      "Number of images served from the tile cache.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gmapsimage",
		Name:      "cache_misses_total",
		Help:      "Number of images not found in the tile cache.",
	})
	imagesConstructed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gmapsimage",
		Name:      "images_constructed_total",
		Help:      "Number of stitched images.",
	})
)

// Collectors returns all metrics of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		tilesFetched,
		fetchErrors,
		fetchDuration,
		cacheHits,
		cacheMisses,
		imagesConstructed,
	}
}

// RegisterMetrics registers all metrics of this package. Collectors that are
// already registered are ignored, so it's fine to call it more than once.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return errors.Wrap(err, "can't register metrics")
		}
	}
	return nil
}
