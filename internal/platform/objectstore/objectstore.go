package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client stores ingestion artifacts (job reports) and hands out presigned
// download links. The bucket is created on startup when missing.
type Client struct {
	mc            *minio.Client
	bucket        string
	presignExpire time.Duration
}

func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, presignExpire time.Duration) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := mc.BucketExists(checkCtx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket failed: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(checkCtx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket failed: %w", err)
		}
	}

	return &Client{
		mc:            mc,
		bucket:        bucket,
		presignExpire: presignExpire,
	}, nil
}

// Put uploads the object and returns a presigned GET URL for it.
func (c *Client) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	_, err := c.mc.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object failed: %w", err)
	}

	presigned, err := c.mc.PresignedGetObject(ctx, c.bucket, objectName, c.presignExpire, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object failed: %w", err)
	}
	return presigned.String(), nil
}

// Ping verifies the object store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := c.mc.BucketExists(checkCtx, c.bucket); err != nil {
		return fmt.Errorf("ping object store failed: %w", err)
	}
	return nil
}
