package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedContentTypes = map[string]struct{}{
	"json": {},
	"html": {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if err := validateOrigin(g.Origin); err != nil {
		return fmt.Errorf("Origin: %w", err)
	}
	if _, ok := supportedContentTypes[g.ContentType]; !ok {
		return newFieldError("ContentType", "仅支持 json|html")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("LogLevel", err.Error())
	}
	if g.Timeout.DurationValue() <= 0 {
		return newFieldError("Timeout", "必须大于 0")
	}
	if g.Concurrency <= 0 {
		return newFieldError("Concurrency", "必须大于 0")
	}
	if g.Listen != "" {
		if _, _, err := net.SplitHostPort(g.Listen); err != nil {
			return newFieldError("Listen", "必须为 host:port")
		}
	}

	if strings.ContainsAny(c.Cache.FileExtension, `/\`) {
		return newFieldError(sectionField("Cache", "FileExtension"), "不允许包含路径分隔符")
	}
	if strings.Contains(c.Cache.Name, "..") {
		return newFieldError(sectionField("Cache", "Name"), "不允许包含 ..")
	}
	if c.Retry.MaxAttempts < 0 {
		return newFieldError(sectionField("Retry", "MaxAttempts"), "不能为负数")
	}
	if c.Throttle.Limit < 0 {
		return newFieldError(sectionField("Throttle", "Limit"), "不能为负数")
	}
	if c.Throttle.Interval.DurationValue() < 0 {
		return newFieldError(sectionField("Throttle", "Interval"), "不能为负数")
	}
	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少 origin 地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("origin 缺少 Host: %s", raw)
	}
	return nil
}
