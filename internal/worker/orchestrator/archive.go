package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"slideloop/internal/ports"
)

// buildArchive zips the given objects in order and stores the result at
// archiveKey. Entry names are the object basenames, so a ready export
// unpacks to 0.png, 1.png, ...
func buildArchive(ctx context.Context, sp ports.StorageProvider, objectKeys []string, archiveKey string) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, key := range objectKeys {
		rc, _, _, err := sp.GetObject(ctx, key)
		if err != nil {
			zw.Close()
			return fmt.Errorf("archive read %s: %w", key, err)
		}

		w, err := zw.Create(path.Base(key))
		if err != nil {
			rc.Close()
			zw.Close()
			return fmt.Errorf("archive entry %s: %w", key, err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			rc.Close()
			zw.Close()
			return fmt.Errorf("archive copy %s: %w", key, err)
		}
		rc.Close()
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive finalize: %w", err)
	}

	_, err := sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   archiveKey,
		ContentType: "application/zip",
		Reader:      bytes.NewReader(buf.Bytes()),
		Size:        int64(buf.Len()),
	})
	if err != nil {
		return fmt.Errorf("archive upload: %w", err)
	}
	return nil
}
