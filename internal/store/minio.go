package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// FileStore keeps post attachments.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// MinioOptions locates the attachment bucket.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps attachments as objects in a single bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects and creates the bucket when it is missing.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return nil, fmt.Errorf("minio make bucket %s: %w", opts.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

// Download returns the object bytes and the content type stored at upload.
func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, string, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("minio stat %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("minio get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, info.Size))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("minio read %s: %w", key, err)
	}
	return data, info.ContentType, nil
}

// Remove deletes the object; a missing object is not an error.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("minio remove %s: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
