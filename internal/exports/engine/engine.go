// Package engine rasterizes slide markup with a headless Chromium. The
// launch strategy (sandboxed remote pack vs. local installation) is a
// deployment choice; rendering flags that affect output are identical in
// both, so the rest of the pipeline never observes the difference.
package engine

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"slideloop/internal/pkg/errors"
	"slideloop/internal/pkg/logger"
)

// Renderer produces one raster image from one unit of slide markup.
type Renderer interface {
	Render(ctx context.Context, markup string, width, height int, format string) ([]byte, error)
}

// renderTimeout bounds a single render, launch included.
const renderTimeout = 90 * time.Second

// Chromium drives a headless browser through chromedp.
type Chromium struct {
	strategy LaunchStrategy
	log      *logger.Logger
}

func NewChromium(strategy LaunchStrategy, log *logger.Logger) *Chromium {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Chromium{
		strategy: strategy,
		log:      log.WithComponent("engine"),
	}
}

// Render rasterizes markup at width×height. format is "png" or "jpg".
// The allocator and browser context are torn down on every exit path,
// timeouts and crashes included. Failures carry the engine error code so
// the orchestrator can fail the slide without failing the run loop.
func (c *Chromium) Render(ctx context.Context, markup string, width, height int, format string) ([]byte, error) {
	opts, err := c.strategy.AllocatorOptions(ctx)
	if err != nil {
		return nil, errors.Engine("engine.launch", err)
	}
	opts = append(opts, commonRenderFlags()...)

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	var shot []byte
	err = chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, markup).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			shot, err = captureScreenshot(ctx, format)
			return err
		}),
	)
	if err != nil {
		return nil, errors.Engine("engine.render", err)
	}

	c.log.Debug("rendered slide markup",
		"strategy", c.strategy.Name(),
		"width", width,
		"height", height,
		"format", format,
		"bytes", len(shot),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return shot, nil
}

func captureScreenshot(ctx context.Context, format string) ([]byte, error) {
	capture := page.CaptureScreenshot()
	if format == "jpg" {
		capture = capture.WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(90)
	} else {
		capture = capture.WithFormat(page.CaptureScreenshotFormatPng)
	}
	return capture.Do(ctx)
}

// commonRenderFlags are shared by both launch strategies; anything here can
// change rendered bytes, so it must not diverge between environments.
func commonRenderFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("disable-lcd-text", true),
		chromedp.Flag("font-render-hinting", "none"),
	}
}
