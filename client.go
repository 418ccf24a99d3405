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
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the endpoint of the Static Maps API.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/staticmap"

	// DefaultTimeout is the timeout of a single request.
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrMissingAPIKey is returned if a request should be sent without a key.
	ErrMissingAPIKey = errors.New("no API key given")

	// ErrRequestDenied is returned if the API answers with 403, usually
	// because of an invalid key.
	ErrRequestDenied = errors.New("request denied by Static Maps API")

	// ErrQuotaExceeded is returned if the API answers with 429.
	ErrQuotaExceeded = errors.New("Static Maps API quota exceeded")

	// ErrNotAnImage is returned if the response is not an image.
	ErrNotAnImage = errors.New("response is not an image")
)

// StatusError is returned if the API answers with a non 2xx status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("Static Maps API returned status %d: %s", err.StatusCode, err.Body)
}

// Is makes 403 and 429 responses match ErrRequestDenied and ErrQuotaExceeded.
func (err *StatusError) Is(target error) bool {
	switch target {
	case ErrRequestDenied:
		return err.StatusCode == http.StatusForbidden
	case ErrQuotaExceeded:
		return err.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// Fetcher retrieves the encoded image for a request.
//
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, r Request) ([]byte, error)
}

// FetcherFunc is a function implementing Fetcher.
type FetcherFunc func(ctx context.Context, r Request) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, r Request) ([]byte, error) {
	return f(ctx, r)
}

// ClientOptions configures a StaticMapsClient. Zero values are replaced by
// defaults.
type ClientOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Retries is the number of attempts for each request, at least one.
	Retries    int
	RetryDelay time.Duration

	// RequestsPerSecond limits the request rate, ≤ 0 means no limit.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient is used as the underlying client if not nil.
	HTTPClient *http.Client
}

// StaticMapsClient is a Fetcher that sends requests to the Static Maps API.
type StaticMapsClient struct {
	client     *resty.Client
	baseURL    string
	apiKey     string
	retries    uint
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// NewStaticMapsClient returns a new client.
func NewStaticMapsClient(opts ClientOptions) *StaticMapsClient {
	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "gmapsimage/"+Version)

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &StaticMapsClient{
		client:     client,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		retries:    uint(retries),
		retryDelay: delay,
		limiter:    limiter,
	}
}

// SetAPIKey replaces the API key used for requests.
func (c *StaticMapsClient) SetAPIKey(key string) {
	c.apiKey = key
}

// HasAPIKey returns true if an API key is set.
func (c *StaticMapsClient) HasAPIKey() bool {
	return c.apiKey != ""
}

// retryable decides whether another attempt makes sense. Client errors
// (except too many requests) won't get better.
func retryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return !errors.Is(err, ErrNotAnImage) && !errors.Is(err, context.Canceled)
}

func errorReason(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.StatusCode)
	case errors.Is(err, ErrNotAnImage):
		return "not_an_image"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}

// Fetch implements Fetcher. The request is validated before it is sent,
// failed requests are retried as configured.
func (c *StaticMapsClient) Fetch(ctx context.Context, r Request) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	var data []byte
	err := retry.Do(
		func() error {
			if waitErr := c.limiter.Wait(ctx); waitErr != nil {
				return retry.Unrecoverable(waitErr)
			}
			var fetchErr error
			data, fetchErr = c.fetchOnce(ctx, r)
			return fetchErr
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.WithFields(log.Fields{
				"key":     r.CacheKey(),
				"attempt": n + 1,
			}).WithError(err).Debug("Static Maps request failed, retrying")
		}),
	)
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		fetchErrors.WithLabelValues(errorReason(err)).Inc()
		return nil, errors.Wrapf(err, "fetching %s", r.CacheKey())
	}
	tilesFetched.Inc()
	return data, nil
}

func (c *StaticMapsClient) fetchOnce(ctx context.Context, r Request) ([]byte, error) {
	log.WithField("key", r.CacheKey()).Debug("Requesting image from Static Maps API")
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(r.Query(c.apiKey)).
		Get(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "Static Maps request failed")
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, &StatusError{StatusCode: code, Body: truncate(string(resp.Body()), 200)}
	}
	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.Wrapf(ErrNotAnImage, "content type \"%s\"", contentType)
	}
	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
