package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useBufferWriters 将 stdout/stderr 替换为缓冲区，便于断言输出。
func useBufferWriters(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prevOut, prevErr := stdOut, stdErr
	outBuf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	stdOut, stdErr = outBuf, errBuf
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return outBuf, errBuf
}

// configFixture 返回 internal/config/testdata 下的配置路径。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("..", "..", "internal", "config", "testdata", name)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "scrape.toml")
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}

// originConfig 生成指向测试 origin 的最小配置，缓存目录位于临时目录。
func originConfig(t *testing.T, origin string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "cache")
	return writeConfigFile(t, fmt.Sprintf(`
Origin = "%s"
LogLevel = "error"
Timeout = "5s"
Concurrency = 2

[Cache]
RootDirectory = "%s"
Name = "test"

[Throttle]
Limit = 0
`, origin, filepath.ToSlash(root)))
}
