package cache

import "time"

// Fresh 判断条目在 now 时刻是否仍在 maxAge 之内；maxAge<=0 时总是新鲜。
func Fresh(entry Entry, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		return true
	}
	return !now.After(entry.ModTime.Add(maxAge))
}

// Age 返回条目自最近一次写入以来经过的时间。
func Age(entry Entry, now time.Time) time.Duration {
	if entry.ModTime.IsZero() {
		return 0
	}
	return now.Sub(entry.ModTime)
}
