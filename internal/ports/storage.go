package ports

import (
	"context"
	"io"
	"time"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	ObjectKey string
	Size      int64
}

type ObjectInfo struct {
	ObjectKey string
	Size      int64
}

type SignedURLInput struct {
	ObjectKey string
	ExpiresIn time.Duration
	// DownloadName, when set, asks for an attachment disposition with that
	// filename; empty means inline.
	DownloadName string
}

type SignedURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// StorageProvider abstracts the owned blob store. Objects are path-addressed
// by ObjectKey; re-putting the same key overwrites (upsert semantics).
// Implementations: localfs, minio, gdrive.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error

	// ListObjects returns every object whose key starts with prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// SignedURL mints a time-limited read URL for an object.
	SignedURL(ctx context.Context, in SignedURLInput) (SignedURLOutput, error)
}
