package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"slideloop/internal/httpkit"
)

const (
	proxyTimeout  = 25 * time.Second
	proxyMaxBytes = 10 << 20
)

var proxyClient = &http.Client{Timeout: proxyTimeout}

// GetProxyImage streams a foreign image through the app origin. Requests
// must carry the HMAC signature minted by the signing layer; anything else
// is rejected before any upstream traffic happens.
func (h *Handler) GetProxyImage(w http.ResponseWriter, r *http.Request) {
	if !h.signer.Enabled() {
		httpkit.WriteErr(w, 404, "NOT_FOUND", "image proxy is not configured", nil)
		return
	}

	target := r.URL.Query().Get("url")
	sig := r.URL.Query().Get("sig")
	if target == "" || sig == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "url and sig are required", nil)
		return
	}
	if !h.signer.Verify(target, sig) {
		httpkit.WriteErr(w, 403, "FORBIDDEN", "invalid signature", nil)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "invalid target url", nil)
		return
	}

	resp, err := proxyClient.Do(req)
	if err != nil {
		httpkit.WriteErr(w, 502, "UPSTREAM_UNAVAILABLE", "upstream fetch failed", nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		httpkit.WriteErr(w, 404, "NOT_FOUND", "upstream image not found", nil)
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpkit.WriteErr(w, 502, "UPSTREAM_UNAVAILABLE", "upstream returned an error", map[string]any{
			"status": resp.StatusCode,
		})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "text/html") {
		httpkit.WriteErr(w, 502, "UPSTREAM_UNAVAILABLE", "upstream did not return an image", nil)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, io.LimitReader(resp.Body, proxyMaxBytes))
}
