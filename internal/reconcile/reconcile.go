// Package reconcile turns caller supplied refs into canonical identifiers
// rooted at a single origin. Every function here is pure: no I/O, no clock,
// so results can be used directly as cache and in-flight map keys.
package reconcile

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrUnreconcilable 表示 ref 是指向其他 origin 的绝对地址。
	ErrUnreconcilable = errors.New("ref does not belong to origin")
	// ErrInvalidRef 表示 ref 为空（去除斜杠后）。
	ErrInvalidRef = errors.New("ref is empty")
)

// TrimSlashes 去除字符串首尾的所有 '/'。
func TrimSlashes(s string) string {
	return strings.Trim(s, "/")
}

// IsAbsolute 判断 ref 是否携带网络 scheme（如 http://、https://）。
func IsAbsolute(ref string) bool {
	idx := strings.Index(ref, "://")
	if idx <= 0 {
		return false
	}
	for i, r := range ref[:idx] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// Reconcile 将 ref 规范化为 origin 下的绝对标识；对已规范化的 ref 幂等。
func Reconcile(origin, ref string) (string, error) {
	origin = TrimSlashes(strings.TrimSpace(origin))
	ref = TrimSlashes(strings.TrimSpace(ref))
	if ref == "" {
		return "", ErrInvalidRef
	}

	if IsAbsolute(ref) {
		if Belongs(origin, ref) {
			return ref, nil
		}
		return "", ErrUnreconcilable
	}

	return origin + "/" + ref, nil
}

// Belongs 判断绝对 ref 是否位于 origin 之下。仅做前缀比较，要求边界落在 '/'、'?' 或 '#'。
func Belongs(origin, ref string) bool {
	origin = TrimSlashes(origin)
	if origin == "" || !strings.HasPrefix(ref, origin) {
		return false
	}
	rest := ref[len(origin):]
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

// Relative 返回 canonical 相对 origin 的路径部分（不含首尾斜杠）。
// canonical 不属于 origin 时 ok 为 false。
func Relative(origin, canonical string) (rel string, ok bool) {
	if !Belongs(origin, canonical) {
		return "", false
	}
	return TrimSlashes(canonical[len(TrimSlashes(origin)):]), true
}

// Host returns the host component of an absolute ref, or "" when it cannot be parsed.
func Host(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return parsed.Host
}
