// Package signing issues time-limited access URLs for stored objects and
// HMAC-signed proxy URLs for fetching foreign images through the app origin.
package signing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"slideloop/internal/pkg/errors"
	"slideloop/internal/ports"
)

// DefaultTTL is the signed-URL lifetime when the caller does not choose one.
const DefaultTTL = 600 * time.Second

// ProxyPath is the API route that serves signed proxy fetches.
const ProxyPath = "/proxy-image"

// Signer holds the shared proxy secret and the app origin. A zero secret
// disables proxy signing (fails closed: no URLs issued, nothing verifies).
type Signer struct {
	sp        ports.StorageProvider
	secret    []byte
	appOrigin string

	// originScheme and originHost are appOrigin parsed once at construction;
	// an unparseable or empty origin leaves them blank and disables proxying.
	originScheme string
	originHost   string
}

func New(sp ports.StorageProvider, secret, appOrigin string) *Signer {
	s := &Signer{
		sp:        sp,
		secret:    []byte(secret),
		appOrigin: strings.TrimRight(appOrigin, "/"),
	}
	if u, err := url.Parse(s.appOrigin); err == nil {
		s.originScheme = u.Scheme
		s.originHost = u.Host
	}
	return s
}

// AccessURL mints a signed read URL for an owned object. TTL <= 0 falls back
// to DefaultTTL. Storage errors propagate; callers must not assume success.
func (s *Signer) AccessURL(ctx context.Context, objectKey string, ttl time.Duration, downloadName string) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	out, err := s.sp.SignedURL(ctx, ports.SignedURLInput{
		ObjectKey:    objectKey,
		ExpiresIn:    ttl,
		DownloadName: downloadName,
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeStorage, "signing.access_url", "storage signed url failed")
	}
	return out.URL, nil
}

// Enabled reports whether proxy signing is configured.
func (s *Signer) Enabled() bool { return len(s.secret) > 0 }

// ProxyURL returns a same-origin URL that proxies target through the API, or
// "" when no proxying applies: same-origin targets, non-http(s) schemes, an
// unconfigured secret, and an unconfigured app origin all yield "". Origins
// match on scheme+host, so a different port or scheme is still proxied.
func (s *Signer) ProxyURL(target string) string {
	if len(s.secret) == 0 || s.originHost == "" {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Scheme == s.originScheme && u.Host == s.originHost {
		return ""
	}
	q := url.Values{}
	q.Set("url", target)
	q.Set("sig", s.sign(target))
	return s.appOrigin + ProxyPath + "?" + q.Encode()
}

// Verify recomputes the HMAC over target and compares in constant time.
// It returns false, never panics, for malformed hex or a missing secret;
// callers cannot distinguish a bad signature from missing configuration.
func (s *Signer) Verify(target, sigHex string) bool {
	if len(s.secret) == 0 || target == "" || sigHex == "" {
		return false
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(target))
	return hmac.Equal(got, mac.Sum(nil))
}

func (s *Signer) sign(target string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(target))
	return hex.EncodeToString(mac.Sum(nil))
}
