// Package objectstore wraps MinIO/S3 interactions: presigned upload
// credentials for clients, raw/optimized artifact access for the worker, and
// the bucket notification stream that triggers processing.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ananthjv/pixlift/internal/config"
)

// Storage wraps a MinIO client plus the two bucket names.
type Storage struct {
	client          *minio.Client
	rawBucket       string
	optimizedBucket string
	region          string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:          client,
		rawBucket:       cfg.RawBucket,
		optimizedBucket: cfg.OptimizedBucket,
		region:          cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure the raw/optimized buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.rawBucket, s.optimizedBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// PresignUpload returns a single-use PUT URL for the raw bucket together with
// the headers the client must send verbatim. The user-metadata headers are
// folded into the V4 signature, so the caller context they carry cannot be
// stripped or altered without invalidating the credential.
func (s *Storage) PresignUpload(ctx context.Context, objectKey string, expiry time.Duration, userMeta map[string]string) (*url.URL, http.Header, error) {
	headers := http.Header{}
	for k, v := range userMeta {
		headers.Set("x-amz-meta-"+k, v)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.rawBucket, objectKey, expiry, url.Values{}, headers)
	if err != nil {
		return nil, nil, fmt.Errorf("presign upload for %s: %w", objectKey, err)
	}
	return u, headers, nil
}

// StatRaw returns the size and user metadata of a raw object. This is how the
// worker recovers the caller context embedded at issuance.
func (s *Storage) StatRaw(ctx context.Context, objectKey string) (int64, map[string]string, error) {
	info, err := s.client.StatObject(ctx, s.rawBucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return 0, nil, fmt.Errorf("stat raw object: %w", err)
	}
	return info.Size, info.UserMetadata, nil
}

// DownloadRaw fetches the raw image bytes from storage.
func (s *Storage) DownloadRaw(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.rawBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get raw object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read raw object: %w", err)
	}
	return buf, nil
}

// UploadVariant writes one optimized rendition into the optimized bucket.
func (s *Storage) UploadVariant(ctx context.Context, objectKey string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.optimizedBucket, objectKey, reader, int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload variant %s: %w", objectKey, err)
	}
	return nil
}

// PresignVariantURL returns a signed GET URL for an optimized rendition.
func (s *Storage) PresignVariantURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.optimizedBucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign variant %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// ListenCreated streams object keys as write-completed events arrive on the
// raw bucket. The channel closes when ctx is cancelled.
func (s *Storage) ListenCreated(ctx context.Context) <-chan string {
	keys := make(chan string)
	go func() {
		defer close(keys)
		events := s.client.ListenBucketNotification(ctx, s.rawBucket, "", "", []string{"s3:ObjectCreated:*"})
		for info := range events {
			if info.Err != nil {
				// The stream reconnects internally; surfacing the error here
				// would only tear down the worker for a transient blip.
				continue
			}
			for _, record := range info.Records {
				key, err := url.QueryUnescape(record.S3.Object.Key)
				if err != nil {
					key = record.S3.Object.Key
				}
				select {
				case keys <- key:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return keys
}
