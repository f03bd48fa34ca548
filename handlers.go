package scrape

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
)

// HandlerKind names a hook slot.
type HandlerKind string

const (
	HandlerRequest       HandlerKind = "request"
	HandlerResponse      HandlerKind = "response"
	HandlerFailedRequest HandlerKind = "failedRequest"
)

// RequestHandler runs before the cache lookup. The returned URL becomes the
// effective ref for the rest of the attempt; nil keeps the input.
type RequestHandler func(ctx context.Context, u *url.URL) (*url.URL, error)

// ResponseHandler runs after a 2xx response and before decoding and storing.
// Returning nil keeps the original response.
type ResponseHandler func(ctx context.Context, resp *RawResponse) (*RawResponse, error)

// FailedRequestHandler observes a failed attempt before the retry. A non-nil
// return aborts the fetch with that error.
type FailedRequestHandler func(ctx context.Context, err error, state RetryState) error

// RetryState is passed through recursive attempts.
type RetryState struct {
	// Attempts is the zero-based index of the attempt that failed.
	Attempts int
	// Err is the error of that attempt.
	Err error
}

// Handlers groups the three hook slots. Nil fields are left untouched by Intercept.
type Handlers struct {
	Request       RequestHandler
	Response      ResponseHandler
	FailedRequest FailedRequestHandler
}

// handlerSet 在读写锁保护下持有三个可替换的钩子。
type handlerSet struct {
	mu sync.RWMutex
	h  Handlers
}

func (s *handlerSet) snapshot() Handlers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

func (s *handlerSet) merge(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.Request != nil {
		s.h.Request = h.Request
	}
	if h.Response != nil {
		s.h.Response = h.Response
	}
	if h.FailedRequest != nil {
		s.h.FailedRequest = h.FailedRequest
	}
}

// status 返回各钩子的注册状态：registered 或 missing。
func (s *handlerSet) status() map[string]string {
	h := s.snapshot()
	state := func(set bool) string {
		if set {
			return "registered"
		}
		return "missing"
	}
	return map[string]string{
		string(HandlerRequest):       state(h.Request != nil),
		string(HandlerResponse):      state(h.Response != nil),
		string(HandlerFailedRequest): state(h.FailedRequest != nil),
	}
}

// AddHandler installs fn for kind, replacing any previous handler. fn must be
// a RequestHandler, ResponseHandler or FailedRequestHandler (or a func literal
// with the same signature) matching kind.
func (c *Client) AddHandler(kind HandlerKind, fn any) error {
	var h Handlers
	switch HandlerKind(strings.TrimSpace(string(kind))) {
	case HandlerRequest:
		switch f := fn.(type) {
		case RequestHandler:
			h.Request = f
		case func(context.Context, *url.URL) (*url.URL, error):
			h.Request = f
		}
		if h.Request == nil {
			return &UnsupportedHandlerError{Kind: kind, Reason: "expected func(context.Context, *url.URL) (*url.URL, error)"}
		}
	case HandlerResponse:
		switch f := fn.(type) {
		case ResponseHandler:
			h.Response = f
		case func(context.Context, *RawResponse) (*RawResponse, error):
			h.Response = f
		}
		if h.Response == nil {
			return &UnsupportedHandlerError{Kind: kind, Reason: "expected func(context.Context, *RawResponse) (*RawResponse, error)"}
		}
	case HandlerFailedRequest:
		switch f := fn.(type) {
		case FailedRequestHandler:
			h.FailedRequest = f
		case func(context.Context, error, RetryState) error:
			h.FailedRequest = f
		}
		if h.FailedRequest == nil {
			return &UnsupportedHandlerError{Kind: kind, Reason: "expected func(context.Context, error, RetryState) error"}
		}
	default:
		return &UnsupportedHandlerError{Kind: kind}
	}
	c.handlers.merge(h)
	return nil
}

// Intercept installs every non-nil handler in h. At least one must be set.
func (c *Client) Intercept(h Handlers) error {
	if h.Request == nil && h.Response == nil && h.FailedRequest == nil {
		return errors.New("intercept requires at least one of request, response or failedRequest")
	}
	c.handlers.merge(h)
	return nil
}

// OnRequest installs the request handler.
func (c *Client) OnRequest(fn RequestHandler) {
	c.handlers.merge(Handlers{Request: fn})
}

// OnResponse installs the response handler.
func (c *Client) OnResponse(fn ResponseHandler) {
	c.handlers.merge(Handlers{Response: fn})
}

// OnFailedRequest installs the failedRequest handler.
func (c *Client) OnFailedRequest(fn FailedRequestHandler) {
	c.handlers.merge(Handlers{FailedRequest: fn})
}

// HandlerStatus reports which hooks are registered.
func (c *Client) HandlerStatus() map[string]string {
	return c.handlers.status()
}
