package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig は S3 互換ストレージへの接続設定です。
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// MinIO は S3 互換のオブジェクトストレージに保存する Backend です。
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIO はクライアントを作成し、バケットが無ければ作成します。
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinIO{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put はオブジェクトを1回の PutObject で書き込みます。
func (m *MinIO) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if m.client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}
	objectKey := m.objectKey(key)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.PutObject(
		ctx,
		m.bucket,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return objectURI(m.bucket, objectKey), nil
}

func (m *MinIO) objectKey(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}

func objectURI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
