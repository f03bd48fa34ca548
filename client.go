package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/handlebauer/scrape/internal/cache"
	"github.com/handlebauer/scrape/internal/logging"
	"github.com/handlebauer/scrape/internal/metrics"
	"github.com/handlebauer/scrape/internal/reconcile"
	"github.com/handlebauer/scrape/internal/throttle"
	"github.com/handlebauer/scrape/internal/transport"
)

// Client coordinates cache lookups, in-flight deduplication, throttled
// transport calls and retries for refs below a single origin.
type Client struct {
	origin      string
	contentType ContentType
	codec       codec
	returnRaw   bool

	store      cache.Store
	limiter    throttle.Limiter
	gate       *throttle.Gate
	httpClient *http.Client
	logger     *logrus.Logger
	metrics    *metrics.Collector

	handlers   handlerSet
	inflight   *inflightMap
	maxRetries atomic.Int64
}

// New validates opts and builds a Client for origin.
func New(origin string, opts ...Option) (*Client, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	origin, err := s.validate(origin)
	if err != nil {
		return nil, err
	}

	cd, err := codecFor(s.contentType)
	if err != nil {
		return nil, err
	}
	var gate *throttle.Gate
	if s.limiter == nil {
		if gate, err = throttle.New(s.throttle); err != nil {
			return nil, err
		}
	}

	c := &Client{
		origin:      origin,
		contentType: s.contentType,
		codec:       cd,
		returnRaw:   s.returnRaw,
		limiter:     s.limiter,
		gate:        gate,
		httpClient:  s.httpClient,
		logger:      s.logger,
		inflight:    newInflightMap(),
	}
	c.maxRetries.Store(int64(s.maxRetries))

	if !s.cacheOff {
		store := s.store
		if store == nil {
			store, err = cache.NewStore(cache.Layout{
				RootDirectory: s.cache.RootDirectory,
				Name:          s.cache.Name,
				Extension:     s.cache.FileExtension,
				Origin:        origin,
			})
			if err != nil {
				return nil, &ValidationError{Fields: []FieldError{{Field: "cache", Reason: err.Error()}}}
			}
		}
		c.store = store
	}
	if c.limiter == nil {
		c.limiter = gate
	}
	if c.httpClient == nil {
		c.httpClient = transport.NewClient(0)
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if s.registerer != nil {
		c.metrics = metrics.New(s.registerer)
	}
	return c, nil
}

// Fetch returns the artifact for ref, from the store when a fresh copy
// exists, otherwise from the origin.
//
// Concurrent Fetch calls for the same ref share one transport call. Failed
// attempts are retried up to MaxRetries times; the final error is returned
// as is. ctx is passed to the limiter, the transport and the store.
func (c *Client) Fetch(ctx context.Context, ref string, opts ...FetchOption) (*Result, error) {
	o := newFetchOptions(opts)
	if o.maxAge < 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "maxAge", Reason: "must be >= 0"}}}
	}
	o.requestID = uuid.NewString()
	return c.attempt(ctx, ref, o, RetryState{})
}

// attempt 是一次尝试；失败时以 Attempts+1 递归自身完成重试。
func (c *Client) attempt(ctx context.Context, ref string, o *fetchOptions, state RetryState) (*Result, error) {
	if state.Attempts > c.MaxRetries() {
		return nil, state.Err
	}

	canonical, err := c.resolve(ref, o.allowDistinctRef)
	if err != nil {
		return nil, err
	}

	h := c.handlers.snapshot()
	effective, err := c.preFlight(ctx, canonical, h.Request)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithFields(logging.FetchFields(c.origin, effective, o.requestID, state.Attempts))

	if c.store != nil {
		if o.force {
			c.metrics.RecordCacheLookup(c.origin, metrics.ResultBypass)
			log.Info("cache invalidated")
		} else {
			art, err := c.readArtifact(ctx, effective, o.maxAge)
			switch {
			case err == nil:
				c.metrics.RecordCacheLookup(c.origin, metrics.ResultHit)
				log.WithField("cache_hit", true).Debug("served from cache")
				return &Result{Artifact: art}, nil
			case errors.Is(err, cache.ErrNotFound):
				c.metrics.RecordCacheLookup(c.origin, metrics.ResultMiss)
			default:
				return nil, &StoreError{Op: "read", Ref: effective, Err: err}
			}
		}
	}

	joinable := state.Err == nil && !o.force
	cl, owner := c.inflight.acquire(effective, joinable)
	if !owner {
		c.metrics.RecordDedupJoin(c.origin)
		log.Debug("joined in-flight request")
		return cl.wait(ctx)
	}

	settled := false
	defer func() {
		if !settled {
			c.inflight.release(effective, cl)
			cl.finish(nil, fmt.Errorf("fetch %s: handler panicked", effective))
		}
	}()
	res, err := c.run(ctx, cl, ref, effective, o, state, h, log)
	settled = true
	cl.finish(res, err)
	return res, err
}

// run 执行传输调用与后处理；无论成功与否，在进入重试前释放 in-flight 条目。
func (c *Client) run(ctx context.Context, cl *call, ref, effective string, o *fetchOptions, state RetryState, h Handlers, log *logrus.Entry) (*Result, error) {
	raw, err := c.roundTrip(ctx, effective, o, state)
	var res *Result
	if err == nil {
		res, err = c.postFlight(ctx, effective, raw, o, state, h.Response)
	}
	c.inflight.release(effective, cl)

	if err == nil {
		log.WithFields(logrus.Fields{"cache_hit": false, "status": raw.StatusCode}).Debug("fetched from origin")
		return res, nil
	}
	if ctx.Err() != nil || !retryable(err) {
		log.WithError(err).Warn("fetch aborted")
		return nil, err
	}

	log.WithError(err).Warn("fetch attempt failed")
	if h.FailedRequest != nil {
		if herr := h.FailedRequest(ctx, err, state); herr != nil {
			return nil, herr
		}
	}

	next := RetryState{Attempts: state.Attempts + 1, Err: err}
	if next.Attempts <= c.MaxRetries() {
		c.metrics.RecordRetry(c.origin, next.Attempts)
	}
	return c.attempt(ctx, ref, o, next)
}

func (c *Client) resolve(ref string, allowDistinct bool) (string, error) {
	canonical, err := reconcile.Reconcile(c.origin, ref)
	switch {
	case err == nil:
		return canonical, nil
	case errors.Is(err, reconcile.ErrInvalidRef):
		return "", &ValidationError{Fields: []FieldError{{Field: "ref", Reason: "must not be empty"}}}
	case allowDistinct:
		return reconcile.TrimSlashes(strings.TrimSpace(ref)), nil
	default:
		return "", &ReconciliationError{Origin: c.origin, Ref: ref}
	}
}

func (c *Client) preFlight(ctx context.Context, canonical string, fn RequestHandler) (string, error) {
	if fn == nil {
		return canonical, nil
	}
	u, err := url.Parse(canonical)
	if err != nil {
		return "", fmt.Errorf("request handler: parse %q: %w", canonical, err)
	}
	out, err := fn(ctx, u)
	if err != nil {
		return "", fmt.Errorf("request handler: %w", err)
	}
	if out == nil {
		return canonical, nil
	}
	return out.String(), nil
}

// admissionError 表示未能获得限速放行，不参与重试。
type admissionError struct {
	err error
}

func (e *admissionError) Error() string { return "throttle admission: " + e.err.Error() }
func (e *admissionError) Unwrap() error { return e.err }

func (c *Client) roundTrip(ctx context.Context, target string, o *fetchOptions, state RetryState) (*RawResponse, error) {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &admissionError{err: err}
	}
	c.metrics.RecordThrottleWait(c.origin, time.Since(waitStart))

	req, err := o.newRequest(ctx, target)
	if err != nil {
		return nil, &RequestError{URL: target, Attempt: state.Attempts, RequestID: o.requestID, Cause: err}
	}
	transport.SetDefaultHeaders(req.Header, c.accept())

	c.metrics.InFlightInc(c.origin)
	defer c.metrics.InFlightDec(c.origin)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordTransport(c.origin, req.Method, 0, time.Since(start))
		return nil, &RequestError{URL: target, Attempt: state.Attempts, RequestID: o.requestID, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.RecordTransport(c.origin, req.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &RequestError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Attempt:    state.Attempts,
			RequestID:  o.requestID,
			Cause:      fmt.Errorf("read body: %w", err),
		}
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &RawResponse{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) postFlight(ctx context.Context, effective string, raw *RawResponse, o *fetchOptions, state RetryState, fn ResponseHandler) (*Result, error) {
	if !raw.OK() {
		return nil, &RequestError{
			URL:        raw.URL,
			StatusCode: raw.StatusCode,
			Status:     raw.Status,
			Attempt:    state.Attempts,
			RequestID:  o.requestID,
		}
	}

	if fn != nil {
		handled, err := fn(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("response handler: %w", err)
		}
		if handled != nil {
			raw = handled
		}
	}

	persist := c.store != nil && !o.skipCache
	if c.returnRaw && !persist {
		return &Result{Raw: raw}, nil
	}

	data, err := c.codec.decode(raw.Body)
	if err != nil {
		return nil, &RequestError{
			URL:        raw.URL,
			StatusCode: raw.StatusCode,
			Status:     raw.Status,
			Attempt:    state.Attempts,
			RequestID:  o.requestID,
			Cause:      fmt.Errorf("decode %s body: %w", c.contentType, err),
		}
	}

	art := &Artifact{
		Ref:         effective,
		ContentType: c.contentType,
		Data:        data,
		Body:        raw.Body,
	}
	if persist {
		encoded, err := c.codec.encode(data)
		if err != nil {
			return nil, &StoreError{Op: "encode", Ref: effective, Err: err}
		}
		entry, err := c.store.Put(ctx, effective, bytes.NewReader(encoded), cache.PutOptions{})
		c.metrics.RecordStoreWrite(c.origin, err)
		if err != nil {
			return nil, &StoreError{Op: "write", Ref: effective, Err: err}
		}
		art.Body = encoded
		art.Path = entry.FilePath
		art.CreatedAt = entry.CreatedAt
		art.ModifiedAt = entry.ModTime
	} else {
		now := time.Now()
		art.CreatedAt = now
		art.ModifiedAt = now
	}

	res := &Result{Artifact: art}
	if c.returnRaw {
		res.Raw = raw
	}
	return res, nil
}

// readArtifact 读取并解码缓存条目；无法解码的条目按未命中处理。
func (c *Client) readArtifact(ctx context.Context, ref string, maxAge time.Duration) (*Artifact, error) {
	rr, err := c.store.Get(ctx, ref, maxAge)
	if err != nil {
		return nil, err
	}
	defer rr.Reader.Close()

	body, err := io.ReadAll(rr.Reader)
	if err != nil {
		return nil, err
	}
	data, err := c.codec.decode(body)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"action": "cache_read",
			"ref":    ref,
			"path":   rr.Entry.FilePath,
		}).WithError(err).Warn("cached entry cannot be decoded, treating as miss")
		return nil, fmt.Errorf("%w: undecodable entry", cache.ErrNotFound)
	}

	return &Artifact{
		Ref:         ref,
		ContentType: c.contentType,
		Data:        data,
		Body:        body,
		Path:        rr.Entry.FilePath,
		CreatedAt:   rr.Entry.CreatedAt,
		ModifiedAt:  rr.Entry.ModTime,
		FromCache:   true,
	}, nil
}

func (c *Client) accept() string {
	if c.contentType == ContentHTML {
		return "text/html"
	}
	return "application/json"
}
