package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// LocalFileStore 基于 afero 文件系统的本地存储
type LocalFileStore struct {
	fs      afero.Fs
	maxSize int64
}

// NewLocalFileStore 创建以 dir 为根目录的本地存储
func NewLocalFileStore(dir string, maxSize int64) *LocalFileStore {
	if dir == "" {
		dir = "uploads"
	}
	return NewLocalFileStoreWithFs(afero.NewBasePathFs(afero.NewOsFs(), dir), maxSize)
}

// NewLocalFileStoreWithFs 使用指定文件系统创建本地存储
func NewLocalFileStoreWithFs(fs afero.Fs, maxSize int64) *LocalFileStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &LocalFileStore{fs: fs, maxSize: maxSize}
}

// Save 校验并写入文件,返回相对路径引用
func (s *LocalFileStore) Save(ctx context.Context, field string, upload Upload) (string, error) {
	p, err := prepare(field, upload, s.maxSize)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(path.Dir(p.key), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, p.key, p.data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return p.key, nil
}

// Delete 删除文件,文件不存在时不报错
func (s *LocalFileStore) Delete(ctx context.Context, ref string) error {
	if strings.Contains(ref, "..") {
		return fmt.Errorf("invalid file reference %q", ref)
	}
	exists, err := afero.Exists(s.fs, ref)
	if err != nil || !exists {
		return err
	}
	return s.fs.Remove(ref)
}
