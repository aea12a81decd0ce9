package localfs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"slideloop/internal/ports"
)

// LocalFS implements ports.StorageProvider on a directory tree. Object keys
// map directly to relative paths under the root. Meant for development and
// single-node deployments.
type LocalFS struct {
	root    string
	baseURL string
	secret  []byte
}

// New stores objects under root. baseURL is the public prefix signed URLs
// are minted against (the API serves it via the file routes); secret signs
// their expiry.
func New(root, baseURL, secret string) *LocalFS {
	return &LocalFS{root: root, baseURL: strings.TrimRight(baseURL, "/"), secret: []byte(secret)}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	dst := filepath.Join(l.root, filepath.FromSlash(in.ObjectKey))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	defer outF.Close()

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

func (l *LocalFS) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	p := filepath.Join(l.root, filepath.FromSlash(objectKey))
	f, err := os.Open(p)
	if err != nil {
		return nil, "", 0, err
	}

	st, statErr := f.Stat()
	if statErr == nil {
		size = st.Size()
	}

	// Prefer extension-based type. If empty, sniff first bytes.
	contentType = mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, 0)
		contentType = http.DetectContentType(buf[:n])
	}

	return f, contentType, size, nil
}

func (l *LocalFS) DeleteObject(ctx context.Context, objectKey string) error {
	p := filepath.Join(l.root, filepath.FromSlash(objectKey))
	return os.Remove(p)
}

func (l *LocalFS) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ports.ObjectInfo{ObjectKey: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SignedURL mints baseURL/files/{key}?exp=...&sig=... with an HMAC over
// key and expiry. The API's file route verifies the same signature.
func (l *LocalFS) SignedURL(ctx context.Context, in ports.SignedURLInput) (ports.SignedURLOutput, error) {
	if in.ObjectKey == "" {
		return ports.SignedURLOutput{}, fmt.Errorf("object_key is required")
	}
	expiresAt := time.Now().UTC().Add(in.ExpiresIn)

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(expiresAt.Unix(), 10))
	if in.DownloadName != "" {
		q.Set("dl", in.DownloadName)
	}
	q.Set("sig", l.sign(in.ObjectKey, expiresAt.Unix()))

	u := l.baseURL + "/files/" + in.ObjectKey + "?" + q.Encode()
	return ports.SignedURLOutput{URL: u, ExpiresAt: expiresAt}, nil
}

// VerifyToken reports whether sig matches objectKey at the given expiry and
// the expiry has not passed. Used by the API's file-serving route.
func (l *LocalFS) VerifyToken(objectKey string, exp int64, sig string) bool {
	if time.Now().UTC().Unix() > exp {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(l.sign(objectKey, exp))
	return hmac.Equal(want, got)
}

func (l *LocalFS) sign(objectKey string, exp int64) string {
	mac := hmac.New(sha256.New, l.secret)
	io.WriteString(mac, objectKey)
	io.WriteString(mac, "\n")
	io.WriteString(mac, strconv.FormatInt(exp, 10))
	return hex.EncodeToString(mac.Sum(nil))
}
