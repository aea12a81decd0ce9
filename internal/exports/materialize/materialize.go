// Package materialize fetches foreign images server-side and re-hosts them
// in owned storage, so slide backgrounds can be served without tripping
// cross-origin policy or hot-link protection on the original host.
package materialize

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slideloop/internal/cache"
	"slideloop/internal/exports/signing"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/ports"
)

const (
	// FetchTimeout bounds one upstream fetch, redirects included.
	FetchTimeout = 25 * time.Second
	// MaxBytes is the response size ceiling.
	MaxBytes = 10 << 20

	// Some image hosts reject referrer-less or obviously non-browser
	// requests, so the fetch presents itself as a browser coming from the
	// image's own origin.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Materializer re-hosts external images. Construct once and share; the
// embedded cache keeps re-materializations of the same source idempotent and
// cheap within a process.
type Materializer struct {
	client *http.Client
	sp     ports.StorageProvider
	signer *signing.Signer
	cache  *cache.Bounded
	log    *logger.Logger
}

func New(sp ports.StorageProvider, signer *signing.Signer, c *cache.Bounded, log *logger.Logger) *Materializer {
	if c == nil {
		c = cache.NewBounded(512)
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Materializer{
		client: &http.Client{Timeout: FetchTimeout},
		sp:     sp,
		signer: signer,
		cache:  c,
		log:    log.WithComponent("materializer"),
	}
}

// Materialize fetches srcURL, validates it is a real image, stores it at
// destKey (extension rewritten to match the actual content type) and returns
// a signed access URL. Every failure collapses into ok=false — callers treat
// that as "skip this image", never as a pipeline error.
func (m *Materializer) Materialize(ctx context.Context, srcURL, destKey string, ttl time.Duration) (string, bool) {
	cacheKey := srcURL + "|" + destKey
	if storedKey, ok := m.cache.Get(cacheKey); ok {
		u, err := m.signer.AccessURL(ctx, storedKey, ttl, "")
		if err == nil && u != "" {
			return u, true
		}
		// Fall through and re-materialize if signing the cached key failed.
	}

	body, contentType, ok := m.fetch(ctx, srcURL)
	if !ok {
		return "", false
	}

	finalKey := rewriteExtension(destKey, extensionFor(contentType))

	_, err := m.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   finalKey,
		ContentType: contentType,
		Reader:      bytes.NewReader(body),
		Size:        int64(len(body)),
	})
	if err != nil {
		m.log.Warn("materialize upload failed", "dest", finalKey, "error", err.Error())
		return "", false
	}

	u, err := m.signer.AccessURL(ctx, finalKey, ttl, "")
	if err != nil || u == "" {
		return "", false
	}

	m.cache.Set(cacheKey, finalKey)
	return u, true
}

func (m *Materializer) fetch(ctx context.Context, srcURL string) (body []byte, contentType string, ok bool) {
	target, err := url.Parse(srcURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, "", false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", target.Scheme+"://"+target.Host+"/")
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Debug("materialize fetch failed", "url", srcURL, "error", err.Error())
		return nil, "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.log.Debug("materialize non-2xx", "url", srcURL, "status", resp.StatusCode)
		return nil, "", false
	}

	contentType = strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if strings.HasPrefix(contentType, "text/html") || strings.HasPrefix(contentType, "text/plain") {
		return nil, "", false
	}
	if resp.ContentLength > MaxBytes {
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes+1))
	if err != nil {
		return nil, "", false
	}
	if len(data) == 0 || len(data) > MaxBytes {
		return nil, "", false
	}

	return data, contentType, true
}

// extensionFor maps a response content type to the canonical stored
// extension; anything unrecognized is stored as jpg.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func rewriteExtension(key, ext string) string {
	if i := strings.LastIndexByte(key, '.'); i > strings.LastIndexByte(key, '/') {
		key = key[:i]
	}
	return key + ext
}
