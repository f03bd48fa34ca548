//go:build linux

package cache

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime 通过 statx 读取文件创建时间，文件系统不支持时回退到 ModTime。
func birthTime(filePath string, info os.FileInfo) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, filePath, unix.AT_STATX_SYNC_AS_STAT, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}
