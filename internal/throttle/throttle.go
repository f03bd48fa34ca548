// Package throttle admits outbound transport calls at a bounded rate.
// A Gate owns the active limiter and can be reconfigured at runtime; callers
// already admitted keep their slot, later callers queue on the new limiter.
package throttle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Options 描述每 Interval 最多放行 Limit 次调用。Limit 或 Interval 为 0 表示不限速。
type Options struct {
	Limit    int           `json:"limit"`
	Interval time.Duration `json:"interval"`
}

// Default 返回默认限速：每秒 1 次。
func Default() Options {
	return Options{Limit: 1, Interval: time.Second}
}

// Unlimited reports whether the options disable throttling.
func (o Options) Unlimited() bool {
	return o.Limit == 0 || o.Interval == 0
}

// Validate 拒绝负数配置。
func (o Options) Validate() error {
	if o.Limit < 0 {
		return errors.New("throttle limit must be >= 0")
	}
	if o.Interval < 0 {
		return errors.New("throttle interval must be >= 0")
	}
	return nil
}

// Limiter 在执行受限操作前阻塞等待放行。
type Limiter interface {
	Wait(ctx context.Context) error
}

type state struct {
	opts    Options
	limiter *rate.Limiter
}

// Gate 持有当前生效的限速器，支持原子替换。
type Gate struct {
	current atomic.Pointer[state]
}

// New 构造 Gate；opts 非法时返回错误。
func New(opts Options) (*Gate, error) {
	g := &Gate{}
	if err := g.Reconfigure(opts); err != nil {
		return nil, err
	}
	return g, nil
}

// Wait 阻塞直到获得放行或 ctx 结束。
func (g *Gate) Wait(ctx context.Context) error {
	return g.current.Load().limiter.Wait(ctx)
}

// Reconfigure 原子替换限速器，已放行的调用不受影响。
func (g *Gate) Reconfigure(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	g.current.Store(&state{opts: opts, limiter: newLimiter(opts)})
	return nil
}

// Options 返回当前生效的配置。
func (g *Gate) Options() Options {
	return g.current.Load().opts
}

func newLimiter(opts Options) *rate.Limiter {
	if opts.Unlimited() {
		return rate.NewLimiter(rate.Inf, 0)
	}
	every := opts.Interval / time.Duration(opts.Limit)
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(every), opts.Limit)
}
