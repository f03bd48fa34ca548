package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/handlebauer/scrape/internal/reconcile"
)

const (
	indexName  = "index"
	foreignDir = "_foreign"
)

// NewStore 根据 layout 构建磁盘缓存；目录在首次写入时才创建。
func NewStore(layout Layout) (Store, error) {
	root := reconcile.TrimSlashes(strings.TrimSpace(layout.RootDirectory))
	if strings.HasPrefix(strings.TrimSpace(layout.RootDirectory), "/") {
		root = "/" + root
	}
	if root == "" {
		root = DefaultRootDirectory
	}

	name := reconcile.TrimSlashes(strings.TrimSpace(layout.Name))
	if name != "" && path.Clean("/"+name) != "/"+name {
		return nil, fmt.Errorf("invalid cache name: %q", layout.Name)
	}

	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(layout.Extension), "."))
	if strings.ContainsAny(ext, `/\`) {
		return nil, fmt.Errorf("invalid cache extension: %q", layout.Extension)
	}

	base := filepath.Clean(filepath.FromSlash(root))
	if name != "" {
		base = filepath.Join(base, filepath.FromSlash(name))
	}

	return &fileStore{
		basePath: base,
		ext:      ext,
		origin:   reconcile.TrimSlashes(strings.TrimSpace(layout.Origin)),
		locks:    make(map[string]*entryLock),
		now:      time.Now,
	}, nil
}

// fileStore 通过 entryLock 避免同一 ref 并发写入。
type fileStore struct {
	basePath string
	ext      string
	origin   string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Get(ctx context.Context, ref string, maxAge time.Duration) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	paths, err := s.Paths(ref)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(paths.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	entry := Entry{
		Ref:       ref,
		FilePath:  paths.Path,
		SizeBytes: info.Size(),
		CreatedAt: birthTime(paths.Path, info),
		ModTime:   info.ModTime(),
	}
	if !Fresh(entry, maxAge, s.now()) {
		return nil, ErrExpired
	}

	f, err := os.Open(paths.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry:  entry,
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, ref string, body io.Reader, opts PutOptions) (*Entry, error) {
	unlock := s.lockEntry(ref)
	defer unlock()

	paths, err := s.Paths(ref)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(paths.Directory, 0o755); err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(paths.Directory, ".cache-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, paths.Path); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = s.now().UTC()
	}
	if err := os.Chtimes(paths.Path, modTime, modTime); err != nil {
		return nil, err
	}

	createdAt := modTime
	if info, err := os.Stat(paths.Path); err == nil {
		createdAt = birthTime(paths.Path, info)
	}

	entry := Entry{
		Ref:       ref,
		FilePath:  paths.Path,
		SizeBytes: written,
		CreatedAt: createdAt,
		ModTime:   modTime,
	}
	return &entry, nil
}

func (s *fileStore) Remove(ctx context.Context, ref string) error {
	unlock := s.lockEntry(ref)
	defer unlock()

	paths, err := s.Paths(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(paths.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) Lookup(ref string) (Paths, bool) {
	paths, err := s.Paths(ref)
	if err != nil {
		return Paths{}, false
	}
	info, err := os.Stat(paths.Path)
	if err != nil || info.IsDir() {
		return Paths{}, false
	}
	return paths, true
}

// Paths 将 ref 映射为磁盘路径：
//
//	https://origin/path/to/page  -> <base>/path/to/page.<ext>
//	https://origin               -> <base>/index.<ext>
//	https://other.host/a/b       -> <base>/_foreign/other.host/a/b.<ext>
func (s *fileStore) Paths(ref string) (Paths, error) {
	rel, err := s.relativePath(ref)
	if err != nil {
		return Paths{}, err
	}

	rel = path.Clean("/" + rel)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		rel = indexName
	}

	dir, file := path.Split(rel)
	if file == "" {
		file = indexName
	}
	if s.ext != "" {
		file += "." + s.ext
	}

	directory := filepath.Join(s.basePath, filepath.FromSlash(dir))
	full := filepath.Join(directory, file)
	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return Paths{}, ErrInvalidPath
	}

	return Paths{
		Directory: directory,
		Filename:  file,
		Path:      full,
	}, nil
}

func (s *fileStore) relativePath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref = ref[:i]
	}

	if rel, ok := reconcile.Relative(s.origin, ref); ok {
		return rel, nil
	}
	if !reconcile.IsAbsolute(ref) {
		return reconcile.TrimSlashes(ref), nil
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, ref)
	}
	rel := foreignDir + "/" + parsed.Host
	if p := reconcile.TrimSlashes(parsed.EscapedPath()); p != "" {
		rel += "/" + p
	}
	if parsed.RawQuery != "" {
		rel += "?" + parsed.RawQuery
	}
	return rel, nil
}

func (s *fileStore) lockEntry(ref string) func() {
	s.mu.Lock()
	lock := s.locks[ref]
	if lock == nil {
		lock = &entryLock{}
		s.locks[ref] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, ref)
		}
		s.mu.Unlock()
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
