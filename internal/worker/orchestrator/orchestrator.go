// Package orchestrator drives one export run end to end: load the carousel,
// resolve and re-host backgrounds, render every slide still and video
// variant, assemble the archive, and settle the run's terminal status.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"slideloop/internal/exports/background"
	"slideloop/internal/exports/engine"
	"slideloop/internal/exports/materialize"
	"slideloop/internal/exports/paths"
	"slideloop/internal/models"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/pkg/metrics"
	"slideloop/internal/ports"
	"slideloop/internal/repositories"
)

// rehostTTL keeps re-hosted background URLs valid for the whole run,
// renders and retries included.
const rehostTTL = 30 * time.Minute

// RunStore is the slice of the export repository the orchestrator needs.
type RunStore interface {
	Get(ctx context.Context, id string) (*models.ExportRun, error)
	MarkRendering(ctx context.Context, id string) (bool, error)
	MarkReady(ctx context.Context, id, archiveKey string) error
	MarkFailed(ctx context.Context, id, cause string) error
}

// CarouselStore is the slice of the carousel repository the orchestrator needs.
type CarouselStore interface {
	Get(ctx context.Context, id string) (*models.Carousel, error)
	Slides(ctx context.Context, carouselID string) ([]models.Slide, error)
}

type Deps struct {
	Runs         RunStore
	Carousels    CarouselStore
	SP           ports.StorageProvider
	Renderer     engine.Renderer
	Resolver     *background.Resolver
	Materializer *materialize.Materializer
	Concurrency  int
	Log          *logger.Logger
}

type Orchestrator struct {
	runs         RunStore
	carousels    CarouselStore
	sp           ports.StorageProvider
	renderer     engine.Renderer
	resolver     *background.Resolver
	materializer *materialize.Materializer
	concurrency  int
	log          *logger.Logger
}

func New(d Deps) *Orchestrator {
	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	return &Orchestrator{
		runs:         d.Runs,
		carousels:    d.Carousels,
		sp:           d.SP,
		renderer:     d.Renderer,
		resolver:     d.Resolver,
		materializer: d.Materializer,
		concurrency:  d.Concurrency,
		log:          d.Log.WithComponent("orchestrator"),
	}
}

// ProcessRun takes a queued run through to ready or failed. A run another
// worker already picked up, or one that no longer exists, is dropped
// without error so the queue loop keeps moving.
func (o *Orchestrator) ProcessRun(ctx context.Context, runID string) error {
	run, err := o.runs.Get(ctx, runID)
	if err != nil {
		if err == repositories.ErrRunNotFound {
			o.log.Warn("queued run not found, dropping", "run_id", runID)
			return nil
		}
		return err
	}
	metrics.ObserveQueueWait(run.CreatedAt)

	picked, err := o.runs.MarkRendering(ctx, run.ID)
	if err != nil {
		return err
	}
	if !picked {
		o.log.Info("run already picked up, dropping", "run_id", run.ID, "status", string(run.Status))
		return nil
	}

	if err := o.render(ctx, run); err != nil {
		cause := err.Error()
		o.log.Error("run failed", "run_id", run.ID, "cause", cause)
		metrics.ExportsTotal.WithLabelValues(string(models.ExportFailed)).Inc()
		if markErr := o.runs.MarkFailed(ctx, run.ID, cause); markErr != nil {
			o.log.Error("mark failed errored", "run_id", run.ID, "error", markErr.Error())
		}
		return err
	}

	metrics.ExportsTotal.WithLabelValues(string(models.ExportReady)).Inc()
	return nil
}

func (o *Orchestrator) render(ctx context.Context, run *models.ExportRun) error {
	carousel, err := o.carousels.Get(ctx, run.CarouselID)
	if err != nil {
		return fmt.Errorf("load carousel %s: %w", run.CarouselID, err)
	}
	slides, err := o.carousels.Slides(ctx, run.CarouselID)
	if err != nil {
		return fmt.Errorf("load slides: %w", err)
	}
	if len(slides) == 0 {
		return fmt.Errorf("carousel %s has no slides", run.CarouselID)
	}

	rp := paths.Resolve(run.OwnerID, run.CarouselID, run.ID)

	// One slide failing must not abort its siblings: every slide runs to
	// completion and its artifacts stay in storage for re-polling. The
	// group context is therefore not tied to the first error.
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, slide := range slides {
		g.Go(func() error {
			return o.renderSlide(ctx, run, carousel, slide, rp)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stillKeys := make([]string, len(slides))
	for i, slide := range slides {
		stillKeys[i] = rp.StillFor(slide.Index, string(run.Format))
	}
	if err := buildArchive(ctx, o.sp, stillKeys, rp.Archive()); err != nil {
		return err
	}

	return o.runs.MarkReady(ctx, run.ID, rp.Archive())
}

// renderSlide composites one slide's still and, when the background carries
// multiple candidate sources, its video variants.
func (o *Orchestrator) renderSlide(ctx context.Context, run *models.ExportRun, carousel *models.Carousel, slide models.Slide, rp paths.Set) error {
	desc := background.Decode(slide.BackgroundJSON)
	foreign := foreignURLs(desc)

	urls := o.resolver.Resolve(ctx, desc)
	urls = o.rehost(ctx, urls, foreign, slide.Index, rp)

	if err := o.renderOne(ctx, run, carousel, slide, urls, rp.StillFor(slide.Index, string(run.Format)), string(run.Format)); err != nil {
		return fmt.Errorf("slide %d: %w", slide.Index, err)
	}

	sources := o.resolver.VideoSources(ctx, desc)
	if len(sources) < 2 {
		return nil
	}
	sources = o.rehost(ctx, sources, foreign, slide.Index, rp)
	for v, src := range sources {
		key := rp.VideoSlide(slide.Index, v)
		if err := o.renderOne(ctx, run, carousel, slide, []string{src}, key, "png"); err != nil {
			return fmt.Errorf("slide %d variant %d: %w", slide.Index, v, err)
		}
	}
	return nil
}

// renderOne renders markup to storage with one retry on engine failure.
func (o *Orchestrator) renderOne(ctx context.Context, run *models.ExportRun, carousel *models.Carousel, slide models.Slide, bgURLs []string, objectKey, format string) error {
	markup, err := BuildSlideMarkup(carousel.TemplateHTML, slide, bgURLs, run.Size.Width, run.Size.Height)
	if err != nil {
		return err
	}

	start := time.Now()
	img, err := o.renderer.Render(ctx, markup, run.Size.Width, run.Size.Height, format)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		metrics.SlideRenderRetries.Inc()
		o.log.Warn("render failed, retrying once", "key", objectKey, "error", err.Error())
		img, err = o.renderer.Render(ctx, markup, run.Size.Width, run.Size.Height, format)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	metrics.SlideRenderDuration.Observe(time.Since(start).Seconds())

	contentType := "image/png"
	if format == "jpg" {
		contentType = "image/jpeg"
	}
	_, err = o.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   objectKey,
		ContentType: contentType,
		Reader:      bytes.NewReader(img),
		Size:        int64(len(img)),
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", objectKey, err)
	}
	return nil
}

// rehost copies foreign background images into owned storage so the render
// engine never fetches cross-origin. Failures keep the original URL; a
// broken background is the engine's problem to render around, not a run
// failure. Signed URLs for owned objects pass through untouched.
func (o *Orchestrator) rehost(ctx context.Context, urls []string, foreign map[string]bool, slideIndex int, rp paths.Set) []string {
	if o.materializer == nil {
		return urls
	}
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u
		if !foreign[u] {
			continue
		}
		if hosted, ok := o.materializer.Materialize(ctx, u, rp.Background(slideIndex, i), rehostTTL); ok {
			out[i] = hosted
			metrics.MaterializeTotal.WithLabelValues("ok").Inc()
		} else {
			metrics.MaterializeTotal.WithLabelValues("failed").Inc()
		}
	}
	return out
}

// foreignURLs collects the descriptor's direct URLs. Anything resolved from
// an object key is already owned and never needs re-hosting.
func foreignURLs(d background.Descriptor) map[string]bool {
	out := make(map[string]bool)
	for _, slot := range d.Slots {
		if slot.URL != "" {
			out[slot.URL] = true
		}
		for _, alt := range slot.Alternates {
			if alt != "" {
				out[alt] = true
			}
		}
	}
	return out
}
