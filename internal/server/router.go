package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/handlebauer/scrape/internal/logging"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
}

const contextKeyRequestID = "_scrape_request_id"

// DiagnosticsPrefix 是所有诊断路由的公共前缀。
const DiagnosticsPrefix = "/-"

// NewApp builds a Fiber application with request ID, access logging and panic
// recovery middlewares. Routes are registered by the caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	return app, nil
}

// NotFound 注册兜底路由；需在所有诊断路由之后调用。
func NotFound(app *fiber.App) {
	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found",
			"path":  c.Path(),
		})
	})
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		fields := logging.ServeFields(reqID, c.Method(), c.Path(), status)
		fields["duration_ms"] = time.Since(start).Milliseconds()
		entry := opts.Logger.WithFields(fields)
		if err != nil {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Debug("request served")
		}
		return err
	}
}

// errorHandler 将未处理的错误统一渲染为 JSON。
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	kind := "internal_error"
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		kind = strings.ToLower(strings.ReplaceAll(fiberErr.Message, " ", "_"))
	}
	return c.Status(code).JSON(fiber.Map{
		"error":      kind,
		"message":    err.Error(),
		"request_id": RequestID(c),
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
