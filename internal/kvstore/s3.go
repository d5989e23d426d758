package kvstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the object-storage backend.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// S3 stores each key as a JSON object in one bucket.
type S3 struct {
	client *minio.Client
	bucket string
}

// ConnectS3 builds a MinIO client and makes sure the bucket exists.
func ConnectS3(ctx context.Context, opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", opts.Bucket, err)
		}
	}
	return &S3{client: client, bucket: opts.Bucket}, nil
}

// Get downloads the object named key.
func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return buf, nil
}

// Put uploads value as the object named key.
func (s *S3) Put(ctx context.Context, key string, value []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	_, err := s.client.PutObject(ctx, s.bucket, objectName(key), bytes.NewReader(value), int64(len(value)), opts)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Close is a no-op; minio clients hold no long-lived connections.
func (s *S3) Close() error { return nil }

func objectName(key string) string {
	return "kv/" + key + ".json"
}
