// Package minio adapts an S3-compatible object store to ports.StorageProvider.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"slideloop/internal/ports"
)

type Client struct {
	mc     *minio.Client
	bucket string
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewClient connects and ensures the bucket exists.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connect: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio bucket create: %w", err)
		}
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

func (c *Client) Provider() string { return "minio" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	size := in.Size
	if size <= 0 {
		size = -1
	}
	info, err := c.mc.PutObject(ctx, c.bucket, in.ObjectKey, in.Reader, size, minio.PutObjectOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("minio put %s: %w", in.ObjectKey, err)
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: info.Size}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", 0, err
	}

	// GetObject is lazy; Stat forces the first request and surfaces missing
	// keys here instead of on first read.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", 0, err
	}

	return obj, stat.ContentType, stat.Size, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	return c.mc.RemoveObject(ctx, c.bucket, objectKey, minio.RemoveObjectOptions{})
}

func (c *Client) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list %s: %w", prefix, obj.Err)
		}
		out = append(out, ports.ObjectInfo{ObjectKey: obj.Key, Size: obj.Size})
	}
	return out, nil
}

func (c *Client) SignedURL(ctx context.Context, in ports.SignedURLInput) (ports.SignedURLOutput, error) {
	reqParams := make(url.Values)
	if in.DownloadName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", in.DownloadName))
	}

	u, err := c.mc.PresignedGetObject(ctx, c.bucket, in.ObjectKey, in.ExpiresIn, reqParams)
	if err != nil {
		return ports.SignedURLOutput{}, fmt.Errorf("minio presign %s: %w", in.ObjectKey, err)
	}

	return ports.SignedURLOutput{
		URL:       u.String(),
		ExpiresAt: time.Now().UTC().Add(in.ExpiresIn),
	}, nil
}
