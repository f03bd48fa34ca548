// Package transport builds the shared HTTP client used for origin fetches.
package transport

import (
	"net"
	"net/http"
	"time"

	"github.com/handlebauer/scrape/internal/version"
)

// DefaultTimeout 是未配置超时时 http.Client 使用的整体超时。
const DefaultTimeout = 30 * time.Second

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回带独立 Transport 的 http.Client；timeout<=0 时使用 DefaultTimeout。
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// UserAgent 是未显式设置时附加到请求上的 User-Agent。
var UserAgent = "scrape/" + version.Version

// SetDefaultHeaders 为请求补齐 Accept/User-Agent，已存在的值保持不变。
func SetDefaultHeaders(h http.Header, accept string) {
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", UserAgent)
	}
	if accept != "" && h.Get("Accept") == "" {
		h.Set("Accept", accept)
	}
}
