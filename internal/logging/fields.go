package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供一次抓取链路的公共字段：origin、ref、请求 ID 与当前尝试序号。
func FetchFields(origin, ref, requestID string, attempt int) logrus.Fields {
	return logrus.Fields{
		"action":     "fetch",
		"origin":     origin,
		"ref":        ref,
		"request_id": requestID,
		"attempt":    attempt,
	}
}

// ServeFields 提供诊断服务请求的日志字段。
func ServeFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     "serve",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
