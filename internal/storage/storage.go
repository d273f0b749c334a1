// Package storage 保存注册第 7 步上传的文件
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/config"
)

// DefaultMaxSize 单个文件大小上限
const DefaultMaxSize int64 = 5 * 1024 * 1024

// 上传字段
const (
	FieldProfilePhoto       = "profilePhoto"
	FieldNICCopy            = "nicCopy"
	FieldDegreeCertificates = "degreeCertificates"
	FieldCVDocument         = "cvDocument"
)

// MaxDegreeCertificates 学位证书最大数量
const MaxDegreeCertificates = 5

// allowedTypes 扩展名到可接受的内容类型
// doc/docx 的内容嗅探结果可能只是通用容器类型
var allowedTypes = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
}

const allowedTypesHint = "jpeg, jpg, png, pdf, doc, docx"

// Upload 待保存的上传文件
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// FileStore 文件存储接口,返回可持久化的文件引用
type FileStore interface {
	Save(ctx context.Context, field string, upload Upload) (string, error)
	Delete(ctx context.Context, ref string) error
}

// NewFileStore 根据配置创建文件存储
func NewFileStore(ctx context.Context, cfg config.UploadConfig) (FileStore, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3FileStore(ctx, cfg)
	case "local", "":
		return NewLocalFileStore(cfg.Dir, cfg.MaxSize), nil
	default:
		return nil, fmt.Errorf("unsupported upload driver %q", cfg.Driver)
	}
}

// prepared 通过校验的文件
type prepared struct {
	key         string
	data        []byte
	contentType string
}

// prepare 校验大小、扩展名和内容类型,生成存储键
func prepare(field string, upload Upload, maxSize int64) (*prepared, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	limit := humanSize(maxSize)

	// 1. 声明的大小
	if upload.Size > maxSize {
		return nil, apperror.NewUpload(field, "file too large", limit)
	}

	// 2. 扩展名
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	accepted, ok := allowedTypes[ext]
	if !ok {
		return nil, apperror.NewUpload(field, "unsupported file type", allowedTypesHint)
	}

	// 3. 实际读取的大小
	data, err := io.ReadAll(io.LimitReader(upload.Reader, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", field, err)
	}
	if int64(len(data)) > maxSize {
		return nil, apperror.NewUpload(field, "file too large", limit)
	}
	if len(data) == 0 {
		return nil, apperror.NewUpload(field, "file is empty", limit)
	}

	// 4. 内容嗅探
	detected := mimetype.Detect(data)
	matched := false
	for _, m := range accepted {
		if detected.Is(m) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, apperror.NewUpload(field, "file content does not match its extension", allowedTypesHint)
	}

	return &prepared{
		key:         path.Join(folderFor(field), fmt.Sprintf("%s-%s%s", field, uuid.New().String(), ext)),
		data:        data,
		contentType: accepted[0],
	}, nil
}

// folderFor 头像放在 photos,其余放在 documents
func folderFor(field string) string {
	if field == FieldProfilePhoto {
		return "photos"
	}
	return "documents"
}

func humanSize(n int64) string {
	if n%(1024*1024) == 0 {
		return fmt.Sprintf("%dMB", n/(1024*1024))
	}
	return fmt.Sprintf("%d bytes", n)
}
