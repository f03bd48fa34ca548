package scrape

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/handlebauer/scrape/internal/cache"
	"github.com/handlebauer/scrape/internal/throttle"
)

// Origin returns the normalised origin the client was built with.
func (c *Client) Origin() string {
	return c.origin
}

// ContentType returns the configured content kind.
func (c *Client) ContentType() ContentType {
	return c.contentType
}

// CacheEnabled reports whether the client has a content store.
func (c *Client) CacheEnabled() bool {
	return c.store != nil
}

// InFlight lists the refs with a transport call in progress, sorted.
func (c *Client) InFlight() []string {
	return c.inflight.refs()
}

// MaxRetries returns the current retry bound.
func (c *Client) MaxRetries() int {
	return int(c.maxRetries.Load())
}

// SetMaxRetries changes the retry bound for attempts evaluated afterwards.
func (c *Client) SetMaxRetries(n int) error {
	if n < 0 {
		return &ValidationError{Fields: []FieldError{{Field: "retry.maxAttempts", Reason: "must be >= 0"}}}
	}
	c.maxRetries.Store(int64(n))
	return nil
}

// Throttle returns the active limit and interval. A client built WithLimiter
// reports 0, 0.
func (c *Client) Throttle() (limit int, interval time.Duration) {
	if c.gate == nil {
		return 0, 0
	}
	opts := c.gate.Options()
	return opts.Limit, opts.Interval
}

// SetThrottle swaps the rate limiter. Calls already admitted are unaffected.
func (c *Client) SetThrottle(limit int, interval time.Duration) error {
	if c.gate == nil {
		return &ValidationError{Fields: []FieldError{{Field: "throttle", Reason: "client uses a custom limiter"}}}
	}
	if err := c.gate.Reconfigure(throttle.Options{Limit: limit, Interval: interval}); err != nil {
		return &ValidationError{Fields: []FieldError{{Field: "throttle", Reason: err.Error()}}}
	}
	c.logger.WithFields(logrus.Fields{
		"action":   "throttle_reconfigure",
		"limit":    limit,
		"interval": interval.String(),
	}).Debug("throttle updated")
	return nil
}

// Paths derives where ref is (or would be) stored, without touching disk.
// Refs outside the origin map to the layout used by AllowDistinctRef.
func (c *Client) Paths(ref string) (cache.Paths, error) {
	if c.store == nil {
		return cache.Paths{}, ErrCacheDisabled
	}
	key, err := c.storeKey(ref)
	if err != nil {
		return cache.Paths{}, err
	}
	return c.store.Paths(key)
}

// PathFor returns the on-disk path of ref only if it has been stored.
func (c *Client) PathFor(ref string) (string, bool, error) {
	if c.store == nil {
		return "", false, ErrCacheDisabled
	}
	key, err := c.storeKey(ref)
	if err != nil {
		return "", false, err
	}
	paths, ok := c.store.Lookup(key)
	return paths.Path, ok, nil
}

// CachedArtifact reads ref from the store only. It returns ErrNotFound when
// nothing is stored.
func (c *Client) CachedArtifact(ctx context.Context, ref string) (*Artifact, error) {
	if c.store == nil {
		return nil, ErrCacheDisabled
	}
	key, err := c.storeKey(ref)
	if err != nil {
		return nil, err
	}
	art, err := c.readArtifact(ctx, key, 0)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "read", Ref: key, Err: err}
	}
	return art, nil
}

// Put encodes data per the content type and writes it to the store under
// ref, bypassing the transport. Refs outside the origin are stored verbatim.
func (c *Client) Put(ctx context.Context, ref string, data any) (*Artifact, error) {
	if c.store == nil {
		return nil, ErrCacheDisabled
	}
	key, err := c.storeKey(ref)
	if err != nil {
		return nil, err
	}

	encoded, err := c.codec.encode(data)
	if err != nil {
		return nil, &StoreError{Op: "encode", Ref: key, Err: err}
	}
	entry, err := c.store.Put(ctx, key, bytes.NewReader(encoded), cache.PutOptions{})
	c.metrics.RecordStoreWrite(c.origin, err)
	if err != nil {
		return nil, &StoreError{Op: "write", Ref: key, Err: err}
	}

	decoded, err := c.codec.decode(encoded)
	if err != nil {
		decoded = data
	}
	return &Artifact{
		Ref:         key,
		ContentType: c.contentType,
		Data:        decoded,
		Body:        encoded,
		Path:        entry.FilePath,
		CreatedAt:   entry.CreatedAt,
		ModifiedAt:  entry.ModTime,
	}, nil
}

// storeKey 将 ref 映射为缓存键；origin 之外的绝对地址按原样使用，与 AllowDistinctRef 写入的键一致。
func (c *Client) storeKey(ref string) (string, error) {
	return c.resolve(ref, true)
}
