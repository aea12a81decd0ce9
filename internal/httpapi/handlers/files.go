package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"slideloop/internal/httpkit"
)

// tokenVerifier is implemented by storage backends whose signed URLs point
// back at this API (localfs).
type tokenVerifier interface {
	VerifyToken(objectKey string, exp int64, sig string) bool
}

// GetFile serves an object referenced by a localfs signed URL. Backends with
// native presigning never route through here, so the route 404s for them.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	verifier, ok := h.sp.(tokenVerifier)
	if !ok {
		httpkit.WriteErr(w, 404, "NOT_FOUND", "file serving is not enabled for this storage provider", nil)
		return
	}

	objectKey := chi.URLParam(r, "*")
	exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
	if err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "exp is required", nil)
		return
	}
	if !verifier.VerifyToken(objectKey, exp, r.URL.Query().Get("sig")) {
		httpkit.WriteErr(w, 403, "FORBIDDEN", "invalid or expired signature", nil)
		return
	}

	rc, contentType, size, err := h.sp.GetObject(r.Context(), objectKey)
	if err != nil {
		httpkit.WriteErr(w, 404, "NOT_FOUND", "object not found", map[string]any{"object_key": objectKey})
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if dl := r.URL.Query().Get("dl"); dl != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
