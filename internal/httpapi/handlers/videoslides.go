package handlers

import (
	"context"
	"net/http"
	"path"
	"sort"

	"github.com/go-chi/chi/v5"

	"slideloop/internal/exports/background"
	"slideloop/internal/exports/paths"
	"slideloop/internal/exports/signing"
	"slideloop/internal/httpkit"
	"slideloop/internal/models"
	"slideloop/internal/ports"
	"slideloop/internal/repositories"
)

// GetVideoSlides returns, per slide, the ordered background-variant frames
// the video step flips between. Slides that produced no variants fall back
// to their still, so every slide always has at least one frame.
func (h *Handler) GetVideoSlides(w http.ResponseWriter, r *http.Request) {
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
	if run.Status != models.ExportReady {
		httpkit.WriteErr(w, 409, "EXPORT_NOT_READY", "export has not finished rendering", map[string]any{
			"export_id": runID,
			"status":    run.Status,
		})
		return
	}

	rp := paths.Resolve(run.OwnerID, run.CarouselID, run.ID)

	variants, err := h.sp.ListObjects(ctx, rp.VideoSlidesPrefix())
	if err != nil {
		httpkit.WriteErr(w, 503, "STORAGE_FAILURE", "could not list video slides", nil)
		return
	}
	stills, err := h.sp.ListObjects(ctx, rp.StillsPrefix())
	if err != nil {
		httpkit.WriteErr(w, 503, "STORAGE_FAILURE", "could not list slides", nil)
		return
	}

	slides, err := h.carousels.Slides(ctx, run.CarouselID)
	if err != nil {
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}
	backgrounds := h.proxiedBackgrounds(ctx, slides)

	groups := groupVideoSlides(variants, stills)

	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		urls := make([]string, 0, len(g.Keys))
		for _, key := range g.Keys {
			u, err := h.signer.AccessURL(ctx, key, signing.DefaultTTL, "")
			if err != nil {
				httpkit.WriteErr(w, 503, "STORAGE_FAILURE", "could not sign video slide url", nil)
				return
			}
			urls = append(urls, u)
		}
		out = append(out, map[string]any{
			"slide":           g.Slide,
			"fallback":        g.Fallback,
			"urls":            urls,
			"background_urls": backgrounds[g.Slide],
		})
	}

	httpkit.WriteJSON(w, 200, map[string]any{"video_slides": out})
}

// proxiedBackgrounds maps slide index to the slide's video background
// sources, each rewritten to a same-origin proxy path where the source is
// foreign. Video assembly fetches frames cross-origin-free this way.
func (h *Handler) proxiedBackgrounds(ctx context.Context, slides []models.Slide) map[int][]string {
	resolver := background.NewResolver(h.signer)
	out := make(map[int][]string, len(slides))
	for _, slide := range slides {
		sources := resolver.VideoSources(ctx, background.Decode(slide.BackgroundJSON))
		if len(sources) == 0 {
			continue
		}
		urls := make([]string, 0, len(sources))
		for _, src := range sources {
			if proxied := h.signer.ProxyURL(src); proxied != "" {
				urls = append(urls, proxied)
			} else {
				urls = append(urls, src)
			}
		}
		out[slide.Index] = urls
	}
	return out
}

type videoSlideGroup struct {
	Slide int
	Keys  []string
	// Fallback marks a group served from the still because the slide
	// produced no variants.
	Fallback bool
}

// groupVideoSlides buckets variant objects by slide, each bucket ordered by
// variant index. Slides present in stills but absent from variants get a
// single-frame fallback group. Output is ordered by slide index.
func groupVideoSlides(variants, stills []ports.ObjectInfo) []videoSlideGroup {
	type variant struct {
		index int
		key   string
	}
	bySlide := make(map[int][]variant)
	for _, info := range variants {
		s, v, ok := paths.ParseVideoSlideName(path.Base(info.ObjectKey))
		if !ok {
			continue
		}
		bySlide[s] = append(bySlide[s], variant{index: v, key: info.ObjectKey})
	}

	stillKeys := make(map[int]string)
	for _, info := range stills {
		if idx, ok := paths.ParseStillName(path.Base(info.ObjectKey)); ok {
			stillKeys[idx] = info.ObjectKey
		}
	}

	slideSet := make(map[int]bool)
	for s := range bySlide {
		slideSet[s] = true
	}
	for s := range stillKeys {
		slideSet[s] = true
	}

	out := make([]videoSlideGroup, 0, len(slideSet))
	for s := range slideSet {
		vs := bySlide[s]
		if len(vs) == 0 {
			still, ok := stillKeys[s]
			if !ok {
				continue
			}
			out = append(out, videoSlideGroup{Slide: s, Keys: []string{still}, Fallback: true})
			continue
		}
		sort.Slice(vs, func(i, j int) bool { return vs[i].index < vs[j].index })
		keys := make([]string, len(vs))
		for i, v := range vs {
			keys[i] = v.key
		}
		out = append(out, videoSlideGroup{Slide: s, Keys: keys})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slide < out[j].Slide })
	return out
}
