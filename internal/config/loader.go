package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultPath 是未指定 -config 与 SCRAPE_CONFIG 时读取的配置文件。
const DefaultPath = "scrape.toml"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ContentType", "json")
	v.SetDefault("ReturnRaw", false)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Timeout", "30s")
	v.SetDefault("Listen", "127.0.0.1:5055")
	v.SetDefault("Concurrency", 4)
	v.SetDefault("Cache.Enabled", true)
	v.SetDefault("Cache.RootDirectory", "__cache")
	v.SetDefault("Retry.MaxAttempts", 0)
	v.SetDefault("Throttle.Limit", 1)
	v.SetDefault("Throttle.Interval", "1s")
}

func applyDefaults(cfg *Config) {
	g := &cfg.Global
	g.Origin = strings.TrimRight(strings.TrimSpace(g.Origin), "/")
	g.ContentType = strings.ToLower(strings.TrimSpace(g.ContentType))
	if g.ContentType == "" {
		g.ContentType = "json"
	}
	if g.Timeout.DurationValue() == 0 {
		g.Timeout = Duration(30 * time.Second)
	}
	if g.Concurrency == 0 {
		g.Concurrency = 4
	}
	if strings.TrimSpace(cfg.Cache.RootDirectory) == "" {
		cfg.Cache.RootDirectory = "__cache"
	}
	cfg.Cache.FileExtension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.Cache.FileExtension), "."))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
