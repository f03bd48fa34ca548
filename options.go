package scrape

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/handlebauer/scrape/internal/cache"
	"github.com/handlebauer/scrape/internal/reconcile"
	"github.com/handlebauer/scrape/internal/throttle"
)

// Option configures a Client at construction time.
type Option func(*settings)

// CacheOptions describes the on-disk layout of the content store.
type CacheOptions struct {
	// RootDirectory defaults to "__cache".
	RootDirectory string
	// Name is an optional sub directory below RootDirectory.
	Name string
	// FileExtension is appended to every cached file name, lower-cased.
	FileExtension string
}

type settings struct {
	contentType ContentType
	returnRaw   bool
	cacheOff    bool
	cache       CacheOptions
	maxRetries  int
	throttle    throttle.Options
	limiter     throttle.Limiter
	httpClient  *http.Client
	logger      *logrus.Logger
	registerer  prometheus.Registerer
	store       cache.Store
}

func defaultSettings() settings {
	return settings{
		contentType: ContentJSON,
		cache:       CacheOptions{RootDirectory: cache.DefaultRootDirectory},
		throttle:    throttle.Default(),
	}
}

// WithContentType selects json (default) or html decoding.
func WithContentType(ct ContentType) Option {
	return func(s *settings) {
		s.contentType = ContentType(strings.ToLower(strings.TrimSpace(string(ct))))
	}
}

// WithReturnRaw makes Fetch return the transport response alongside the stored artifact.
func WithReturnRaw() Option {
	return func(s *settings) {
		s.returnRaw = true
	}
}

// WithCache configures the store layout. Empty fields keep their defaults.
func WithCache(opts CacheOptions) Option {
	return func(s *settings) {
		s.cacheOff = false
		if opts.RootDirectory != "" {
			s.cache.RootDirectory = opts.RootDirectory
		}
		s.cache.Name = opts.Name
		s.cache.FileExtension = opts.FileExtension
	}
}

// WithoutCache disables the content store: every fetch hits the transport
// and nothing is written.
func WithoutCache() Option {
	return func(s *settings) {
		s.cacheOff = true
	}
}

// WithMaxRetries bounds the number of retries after a failed attempt.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		s.maxRetries = n
	}
}

// WithThrottle admits at most limit transport calls per interval.
// A zero limit or interval disables throttling.
func WithThrottle(limit int, interval time.Duration) Option {
	return func(s *settings) {
		s.throttle = throttle.Options{Limit: limit, Interval: interval}
	}
}

// WithLimiter replaces the built-in rate limiter. WithThrottle settings are
// ignored and SetThrottle reports a ValidationError for such clients.
func WithLimiter(l throttle.Limiter) Option {
	return func(s *settings) {
		s.limiter = l
	}
}

// WithHTTPClient replaces the default transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *logrus.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithMetrics registers Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

// WithStore replaces the disk store, mainly for tests.
func WithStore(store cache.Store) Option {
	return func(s *settings) {
		s.store = store
	}
}

// validate 收集所有非法字段后一次性返回。
func (s *settings) validate(origin string) (string, error) {
	verr := &ValidationError{}

	origin = reconcile.TrimSlashes(strings.TrimSpace(origin))
	if origin == "" {
		verr.add("origin", "must not be empty")
	} else if parsed, err := url.Parse(origin); err != nil {
		verr.add("origin", err.Error())
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		verr.add("origin", "must be an http or https URL")
	} else if parsed.Host == "" {
		verr.add("origin", "missing host")
	}

	if _, err := codecFor(s.contentType); err != nil {
		verr.add("contentType", "must be json or html")
	}
	if s.maxRetries < 0 {
		verr.add("retry.maxAttempts", "must be >= 0")
	}
	if s.throttle.Limit < 0 {
		verr.add("throttle.limit", "must be >= 0")
	}
	if s.throttle.Interval < 0 {
		verr.add("throttle.interval", "must be >= 0")
	}
	if strings.ContainsAny(s.cache.FileExtension, `/\`) {
		verr.add("cache.fileExtension", "must not contain path separators")
	}

	return origin, verr.orNil()
}
