package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<RootDirectory>/<Name>/<path relative to origin>[.<Extension>]
//
// 每个条目仅由正文文件组成，时间信息由文件系统提供。
type Store interface {
	// Get 返回可读取的缓存条目。不存在或超过 maxAge 时返回 ErrNotFound；maxAge<=0 表示不限。
	Get(ctx context.Context, ref string, maxAge time.Duration) (*ReadResult, error)

	// Put 以临时文件 + rename 的方式整体覆盖条目，失败时清理临时文件。
	Put(ctx context.Context, ref string, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除条目，不存在时视为成功。
	Remove(ctx context.Context, ref string) error

	// Paths 推导 ref 对应的目录/文件名/完整路径，不访问文件系统。
	Paths(ref string) (Paths, error)

	// Lookup 仅当文件存在时返回路径。
	Lookup(ref string) (Paths, bool)
}

// Layout 描述缓存目录结构。Origin 用于把 canonical ref 还原成相对路径。
type Layout struct {
	RootDirectory string
	Name          string
	Extension     string
	Origin        string
}

// DefaultRootDirectory 是未配置 RootDirectory 时使用的根目录。
const DefaultRootDirectory = "__cache"

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Paths 为 ref 推导出的磁盘位置。
type Paths struct {
	Directory string `json:"directory"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
}

// Entry 表示一次缓存命中或写入结果。
type Entry struct {
	Ref       string    `json:"ref"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrExpired 表示缓存存在但已超过 maxAge，对调用方等同于 ErrNotFound。
	ErrExpired = fmt.Errorf("%w: expired", ErrNotFound)
	// ErrInvalidPath 表示 ref 推导出的路径越出了缓存目录。
	ErrInvalidPath = errors.New("invalid cache path")
)
