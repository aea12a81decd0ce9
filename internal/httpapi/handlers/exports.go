package handlers

import (
	"context"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"slideloop/internal/exports/paths"
	"slideloop/internal/exports/signing"
	"slideloop/internal/httpkit"
	"slideloop/internal/models"
	"slideloop/internal/repositories"
)

type CreateExportRequest struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PostExport creates a pending export run for a carousel and enqueues it.
func (h *Handler) PostExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	carouselID := chi.URLParam(r, "carouselId")

	var req CreateExportRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "invalid json body", nil)
		return
	}

	format := models.ExportFormat(strings.ToLower(strings.TrimSpace(req.Format)))
	if format == "" {
		format = models.FormatPNG
	}
	if format != models.FormatPNG && format != models.FormatJPG {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "format must be png or jpg", map[string]any{"field": "format"})
		return
	}

	size := models.ExportSize{Width: req.Width, Height: req.Height}
	if size == (models.ExportSize{}) {
		size = models.AllowedSizes[0]
	}
	if !size.Valid() {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "unsupported output size", map[string]any{
			"width":  req.Width,
			"height": req.Height,
		})
		return
	}

	carousel, err := h.carousels.Get(ctx, carouselID)
	if err != nil {
		if err == repositories.ErrCarouselNotFound {
			httpkit.WriteErr(w, 404, "CAROUSEL_NOT_FOUND", "carousel not found", map[string]any{"carousel_id": carouselID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	run := &models.ExportRun{
		ID:         uuid.NewString(),
		OwnerID:    carousel.OwnerID,
		CarouselID: carousel.ID,
		Format:     format,
		Size:       size,
		Status:     models.ExportPending,
	}
	if err := h.exports.Create(ctx, run); err != nil {
		if err == repositories.ErrRunExists {
			httpkit.WriteErr(w, 409, "EXPORT_EXISTS", "export run already exists", map[string]any{"export_id": run.ID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db insert failed", nil)
		return
	}

	if err := h.queue.Push(ctx, run.ID); err != nil {
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "queue push failed", nil)
		return
	}

	httpkit.WriteJSON(w, 202, map[string]any{
		"export": map[string]any{
			"id":          run.ID,
			"carousel_id": run.CarouselID,
			"format":      run.Format,
			"width":       run.Size.Width,
			"height":      run.Size.Height,
			"status":      run.Status,
			"created_at":  run.CreatedAt,
		},
	})
}

// GetExport reports a run's status. Ready runs carry signed URLs for the
// archive and every still.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "exportId")

	run, err := h.exports.Get(ctx, runID)
	if err != nil {
		if err == repositories.ErrRunNotFound {
			httpkit.WriteErr(w, 404, "EXPORT_NOT_FOUND", "export not found", map[string]any{"export_id": runID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	body := map[string]any{
		"id":          run.ID,
		"carousel_id": run.CarouselID,
		"format":      run.Format,
		"width":       run.Size.Width,
		"height":      run.Size.Height,
		"status":      run.Status,
		"created_at":  run.CreatedAt,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
	}

	switch run.Status {
	case models.ExportFailed:
		body["error"] = run.ErrorText
	case models.ExportReady:
		archiveURL, err := h.signer.AccessURL(ctx, run.ArchiveKey, signing.DefaultTTL, "carousel.zip")
		if err != nil {
			httpkit.WriteErr(w, 503, "STORAGE_FAILURE", "could not sign archive url", nil)
			return
		}
		body["archive_url"] = archiveURL

		slides, err := h.signedStills(ctx, run)
		if err != nil {
			httpkit.WriteErr(w, 503, "STORAGE_FAILURE", "could not sign slide urls", nil)
			return
		}
		body["slides"] = slides
	}

	httpkit.WriteJSON(w, 200, map[string]any{"export": body})
}

type slideURL struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	// ExpiresAt tells pollers when to re-request fresh links.
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) signedStills(ctx context.Context, run *models.ExportRun) ([]slideURL, error) {
	rp := paths.Resolve(run.OwnerID, run.CarouselID, run.ID)
	infos, err := h.sp.ListObjects(ctx, rp.StillsPrefix())
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(signing.DefaultTTL)
	out := make([]slideURL, 0, len(infos))
	for _, info := range infos {
		idx, ok := paths.ParseStillName(path.Base(info.ObjectKey))
		if !ok {
			continue
		}
		u, err := h.signer.AccessURL(ctx, info.ObjectKey, signing.DefaultTTL, "")
		if err != nil {
			return nil, err
		}
		out = append(out, slideURL{Index: idx, URL: u, ExpiresAt: expiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
