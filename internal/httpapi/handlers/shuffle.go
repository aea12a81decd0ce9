package handlers

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"slideloop/internal/exports/background"
	"slideloop/internal/httpkit"
	"slideloop/internal/repositories"
)

// PostShuffleBackground re-picks a slide's primary background from its
// candidate pool and persists the result. Descriptors without a usable pool
// come back unchanged with shuffled=false.
func (h *Handler) PostShuffleBackground(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	carouselID := chi.URLParam(r, "carouselId")

	index, err := strconv.Atoi(chi.URLParam(r, "slideIndex"))
	if err != nil || index < 0 {
		httpkit.WriteErr(w, 400, "VALIDATION_FAILED", "slide index must be a non-negative integer", nil)
		return
	}

	slide, err := h.carousels.Slide(ctx, carouselID, index)
	if err != nil {
		if err == repositories.ErrSlideNotFound {
			httpkit.WriteErr(w, 404, "SLIDE_NOT_FOUND", "slide not found", map[string]any{
				"carousel_id": carouselID,
				"slide_index": index,
			})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	before := background.Decode(slide.BackgroundJSON)
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	after := background.Shuffle(before, rng)

	shuffled := len(after.Slots) == 1 && len(before.Slots) == 1 &&
		after.Slots[0].URL != before.Slots[0].URL

	if shuffled {
		raw, err := json.Marshal(after)
		if err != nil {
			httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "could not encode background", nil)
			return
		}
		if err := h.carousels.UpdateSlideBackground(ctx, carouselID, index, raw); err != nil {
			httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db update failed", nil)
			return
		}
	}

	httpkit.WriteJSON(w, 200, map[string]any{
		"background": after,
		"shuffled":   shuffled,
	})
}
