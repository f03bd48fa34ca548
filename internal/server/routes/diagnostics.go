package routes

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/handlebauer/scrape"
	"github.com/handlebauer/scrape/internal/server"
	"github.com/handlebauer/scrape/internal/version"
)

// Fetcher 是诊断接口依赖的客户端能力，*scrape.Client 满足该接口。
type Fetcher interface {
	Fetch(ctx context.Context, ref string, opts ...scrape.FetchOption) (*scrape.Result, error)
	PathFor(ref string) (string, bool, error)
	InFlight() []string
	HandlerStatus() map[string]string
	Origin() string
	Throttle() (int, time.Duration)
	MaxRetries() int
	CacheEnabled() bool
}

// RegisterDiagnosticsRoutes 暴露 /-/status、/-/path 与 /-/fetch。
func RegisterDiagnosticsRoutes(app *fiber.App, client Fetcher) {
	if app == nil || client == nil {
		return
	}
	group := app.Group(server.DiagnosticsPrefix)

	group.Get("/status", func(c fiber.Ctx) error {
		limit, interval := client.Throttle()
		return c.JSON(statusPayload{
			Origin:       client.Origin(),
			Version:      version.Full(),
			CacheEnabled: client.CacheEnabled(),
			MaxRetries:   client.MaxRetries(),
			Throttle:     throttlePayload{Limit: limit, Interval: interval.String()},
			InFlight:     client.InFlight(),
			Handlers:     client.HandlerStatus(),
		})
	})

	group.Get("/path", func(c fiber.Ctx) error {
		ref := strings.TrimSpace(c.Query("ref"))
		if ref == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ref_required"})
		}
		path, exists, err := client.PathFor(ref)
		if err != nil {
			return renderFetchError(c, err)
		}
		return c.JSON(fiber.Map{"ref": ref, "path": path, "exists": exists})
	})

	group.Get("/fetch", func(c fiber.Ctx) error {
		ref := strings.TrimSpace(c.Query("ref"))
		if ref == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ref_required"})
		}
		opts, err := fetchOptionsFromQuery(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_option", "message": err.Error()})
		}

		res, err := client.Fetch(c.Context(), ref, opts...)
		if err != nil {
			return renderFetchError(c, err)
		}
		return c.JSON(encodeResult(ref, res))
	})
}

// RegisterMetricsRoute 通过 adaptor 将 promhttp 挂载到 /-/metrics。
func RegisterMetricsRoute(app *fiber.App, gatherer prometheus.Gatherer) {
	if app == nil || gatherer == nil {
		return
	}
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	app.Get(server.DiagnosticsPrefix+"/metrics", adaptor.HTTPHandler(handler))
}

type statusPayload struct {
	Origin       string            `json:"origin"`
	Version      string            `json:"version"`
	CacheEnabled bool              `json:"cache_enabled"`
	MaxRetries   int               `json:"max_retries"`
	Throttle     throttlePayload   `json:"throttle"`
	InFlight     []string          `json:"in_flight"`
	Handlers     map[string]string `json:"handlers"`
}

type throttlePayload struct {
	Limit    int    `json:"limit"`
	Interval string `json:"interval"`
}

type resultPayload struct {
	Ref        string          `json:"ref"`
	Effective  string          `json:"effective_ref,omitempty"`
	Path       string          `json:"path,omitempty"`
	FromCache  bool            `json:"from_cache"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	ModifiedAt *time.Time      `json:"modified_at,omitempty"`
	Status     int             `json:"status,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Text       string          `json:"text,omitempty"`
}

func encodeResult(ref string, res *scrape.Result) resultPayload {
	out := resultPayload{Ref: ref, FromCache: res.FromCache()}
	if res.Raw != nil {
		out.Status = res.Raw.StatusCode
	}
	body := []byte(nil)
	ct := scrape.ContentJSON
	if art := res.Artifact; art != nil {
		out.Effective = art.Ref
		out.Path = art.Path
		if !art.CreatedAt.IsZero() {
			created, modified := art.CreatedAt, art.ModifiedAt
			out.CreatedAt = &created
			out.ModifiedAt = &modified
		}
		body = art.Body
		ct = art.ContentType
	} else if res.Raw != nil {
		body = res.Raw.Body
		if !json.Valid(body) {
			ct = scrape.ContentHTML
		}
	}
	if ct == scrape.ContentJSON && json.Valid(body) {
		out.Data = json.RawMessage(body)
	} else {
		out.Text = string(body)
	}
	return out
}

func fetchOptionsFromQuery(c fiber.Ctx) ([]scrape.FetchOption, error) {
	var opts []scrape.FetchOption
	for key, opt := range map[string]scrape.FetchOption{
		"force":         scrape.Invalidate(),
		"skipCache":     scrape.SkipCache(),
		"allowDistinct": scrape.AllowDistinctRef(),
	} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New(key + ": expected boolean")
		}
		if enabled {
			opts = append(opts, opt)
		}
	}
	if raw := c.Query("maxAge"); raw != "" {
		age, err := scrape.ParseMaxAge(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scrape.WithMaxAge(age))
	}
	return opts, nil
}

// renderFetchError 将客户端错误映射为 HTTP 状态码。
func renderFetchError(c fiber.Ctx, err error) error {
	var (
		validation *scrape.ValidationError
		reconcile  *scrape.ReconciliationError
		request    *scrape.RequestError
		store      *scrape.StoreError
	)
	payload := fiber.Map{"message": err.Error(), "request_id": server.RequestID(c)}
	status := fiber.StatusInternalServerError

	switch {
	case errors.As(err, &validation):
		status, payload["error"] = fiber.StatusBadRequest, "invalid_ref"
	case errors.As(err, &reconcile):
		status, payload["error"] = fiber.StatusUnprocessableEntity, "foreign_ref"
	case errors.Is(err, scrape.ErrCacheDisabled):
		status, payload["error"] = fiber.StatusConflict, "cache_disabled"
	case errors.As(err, &request):
		status, payload["error"] = fiber.StatusBadGateway, "upstream_failed"
		if request.StatusCode != 0 {
			payload["upstream_status"] = request.StatusCode
		}
	case errors.As(err, &store):
		payload["error"] = "store_failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, payload["error"] = fiber.StatusGatewayTimeout, "timeout"
	default:
		payload["error"] = "fetch_failed"
	}
	return c.Status(status).JSON(payload)
}
