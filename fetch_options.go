package scrape

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FetchOption tunes a single Fetch call. Control options (Invalidate,
// WithMaxAge, SkipCache, AllowDistinctRef) never reach the transport; only
// the method, headers, query and body do.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	force            bool
	maxAge           time.Duration
	skipCache        bool
	allowDistinctRef bool

	method string
	header http.Header
	query  url.Values
	body   []byte

	requestID string
}

func newFetchOptions(opts []FetchOption) *fetchOptions {
	o := &fetchOptions{method: http.MethodGet, header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Invalidate bypasses the cache lookup and always performs a new transport
// call. The existing entry is not deleted; the new write overwrites it.
func Invalidate() FetchOption {
	return func(o *fetchOptions) {
		o.force = true
	}
}

// WithMaxAge treats cached entries older than d as a miss.
func WithMaxAge(d time.Duration) FetchOption {
	return func(o *fetchOptions) {
		o.maxAge = d
	}
}

// SkipCache performs the fetch without writing the result to the store.
func SkipCache() FetchOption {
	return func(o *fetchOptions) {
		o.skipCache = true
	}
}

// AllowDistinctRef accepts absolute refs outside the origin; the ref is then
// used verbatim as the cache key.
func AllowDistinctRef() FetchOption {
	return func(o *fetchOptions) {
		o.allowDistinctRef = true
	}
}

// WithMethod sets the HTTP method, GET by default.
func WithMethod(method string) FetchOption {
	return func(o *fetchOptions) {
		o.method = method
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) FetchOption {
	return func(o *fetchOptions) {
		o.header.Add(key, value)
	}
}

// WithQuery adds a query parameter to the transport URL. The cache key is
// the ref as given; put the query in the ref to key entries by it.
func WithQuery(key, value string) FetchOption {
	return func(o *fetchOptions) {
		o.query.Add(key, value)
	}
}

// WithBody sets the request body, resent unchanged on every attempt.
func WithBody(body []byte) FetchOption {
	return func(o *fetchOptions) {
		o.body = body
	}
}

func (o *fetchOptions) newRequest(ctx context.Context, target string) (*http.Request, error) {
	var body io.Reader
	if o.body != nil {
		body = bytes.NewReader(o.body)
	}
	req, err := http.NewRequestWithContext(ctx, o.method, target, body)
	if err != nil {
		return nil, err
	}
	if len(o.query) > 0 {
		q := req.URL.Query()
		for key, values := range o.query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	req.Header = o.header.Clone()
	return req, nil
}
