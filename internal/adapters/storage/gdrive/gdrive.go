// Package gdrive adapts Google Drive to ports.StorageProvider. Drive has no
// real key hierarchy, so the full object key is stored as the file Name and
// lookups go through Files.List name queries. Suitable for small archives,
// not high-volume slide traffic.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"slideloop/internal/ports"
)

type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	// Upsert: replace any existing file carrying this key.
	if existing, err := c.findByKey(ctx, in.ObjectKey); err == nil && existing != "" {
		if err := c.srv.Files.Delete(existing).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
			return ports.PutObjectOutput{}, fmt.Errorf("gdrive replace %s: %w", in.ObjectKey, err)
		}
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	if _, err := call.Context(ctx).Do(); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload %s: %w", in.ObjectKey, err)
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	id, err := c.findByKey(ctx, objectKey)
	if err != nil {
		return nil, "", 0, err
	}

	resp, err := c.srv.Files.Get(id).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, "", 0, err
	}

	return resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	id, err := c.findByKey(ctx, objectKey)
	if err != nil {
		return err
	}
	return c.srv.Files.Delete(id).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

func (c *Client) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	q := fmt.Sprintf("name contains '%s' and trashed = false", escapeQuery(prefix))
	if c.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", c.folderID)
	}

	var out []ports.ObjectInfo
	pageToken := ""
	for {
		call := c.srv.Files.List().
			Q(q).
			Fields("nextPageToken, files(id, name, size)").
			PageSize(200).
			SupportsAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gdrive list %s: %w", prefix, err)
		}
		for _, f := range res.Files {
			// "contains" matches substrings; keep true prefix matches only.
			if !strings.HasPrefix(f.Name, prefix) {
				continue
			}
			out = append(out, ports.ObjectInfo{ObjectKey: f.Name, Size: f.Size})
		}
		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

// SignedURL makes the file link-readable and returns its content link. Drive
// links do not expire on their own; expiry here is advisory.
func (c *Client) SignedURL(ctx context.Context, in ports.SignedURLInput) (ports.SignedURLOutput, error) {
	id, err := c.findByKey(ctx, in.ObjectKey)
	if err != nil {
		return ports.SignedURLOutput{}, err
	}

	_, err = c.srv.Permissions.Create(id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return ports.SignedURLOutput{}, fmt.Errorf("gdrive share %s: %w", in.ObjectKey, err)
	}

	f, err := c.srv.Files.Get(id).
		Fields("webContentLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return ports.SignedURLOutput{}, err
	}

	return ports.SignedURLOutput{
		URL:       f.WebContentLink,
		ExpiresAt: time.Now().UTC().Add(in.ExpiresIn),
	}, nil
}

func (c *Client) findByKey(ctx context.Context, objectKey string) (string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(objectKey))
	if c.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", c.folderID)
	}
	res, err := c.srv.Files.List().
		Q(q).
		Fields("files(id)").
		PageSize(1).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gdrive lookup %s: %w", objectKey, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("gdrive object not found: %s", objectKey)
	}
	return res.Files[0].Id, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
