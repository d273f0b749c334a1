package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mautops/membership-gin/internal/config"
)

// ObjectClient S3 客户端中用到的方法子集
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3FileStore 基于 S3 兼容对象存储的文件存储
type S3FileStore struct {
	client  ObjectClient
	bucket  string
	maxSize int64
}

// NewS3FileStore 使用默认凭证链创建 S3 存储,Endpoint 非空时使用路径风格访问
func NewS3FileStore(ctx context.Context, cfg config.UploadConfig) (*S3FileStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("upload.bucket is required for s3 driver")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3FileStoreWithClient(client, cfg.Bucket, cfg.MaxSize), nil
}

// NewS3FileStoreWithClient 使用指定客户端创建 S3 存储
func NewS3FileStoreWithClient(client ObjectClient, bucket string, maxSize int64) *S3FileStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &S3FileStore{client: client, bucket: bucket, maxSize: maxSize}
}

// Save 校验并上传对象,返回对象键
func (s *S3FileStore) Save(ctx context.Context, field string, upload Upload) (string, error) {
	p, err := prepare(field, upload, s.maxSize)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(p.key),
		Body:          bytes.NewReader(p.data),
		ContentType:   aws.String(p.contentType),
		ContentLength: aws.Int64(int64(len(p.data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", p.key, err)
	}
	return p.key, nil
}

// Delete 删除对象
func (s *S3FileStore) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	return err
}
