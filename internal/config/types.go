package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述 origin、日志与诊断服务等顶层参数。
type GlobalConfig struct {
	Origin        string   `mapstructure:"Origin"`
	ContentType   string   `mapstructure:"ContentType"`
	ReturnRaw     bool     `mapstructure:"ReturnRaw"`
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
	Timeout       Duration `mapstructure:"Timeout"`
	Listen        string   `mapstructure:"Listen"`
	Concurrency   int      `mapstructure:"Concurrency"`
}

// CacheConfig 对应 [Cache] 段，决定本地缓存目录布局。
type CacheConfig struct {
	Enabled       bool   `mapstructure:"Enabled"`
	RootDirectory string `mapstructure:"RootDirectory"`
	Name          string `mapstructure:"Name"`
	FileExtension string `mapstructure:"FileExtension"`
}

// RetryConfig 对应 [Retry] 段。
type RetryConfig struct {
	MaxAttempts int `mapstructure:"MaxAttempts"`
}

// ThrottleConfig 对应 [Throttle] 段：每 Interval 最多 Limit 次请求。
type ThrottleConfig struct {
	Limit    int      `mapstructure:"Limit"`
	Interval Duration `mapstructure:"Interval"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:"Cache"`
	Retry    RetryConfig    `mapstructure:"Retry"`
	Throttle ThrottleConfig `mapstructure:"Throttle"`
}

// CacheMode 输出 `disabled` 或缓存目录，供日志字段使用。
func (c CacheConfig) CacheMode() string {
	if !c.Enabled {
		return "disabled"
	}
	if c.Name == "" {
		return c.RootDirectory
	}
	return c.RootDirectory + "/" + c.Name
}
