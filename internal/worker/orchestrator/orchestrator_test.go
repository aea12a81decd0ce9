package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"slideloop/internal/exports/background"
	"slideloop/internal/exports/engine"
	"slideloop/internal/exports/signing"
	"slideloop/internal/models"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/ports"
	"slideloop/internal/repositories"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Provider() string { return "mem" }

func (s *memStorage) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[in.ObjectKey] = data
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(data))}, nil
}

func (s *memStorage) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, "", 0, fmt.Errorf("not found: %s", objectKey)
	}
	return io.NopCloser(bytes.NewReader(data)), "", int64(len(data)), nil
}

func (s *memStorage) DeleteObject(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

func (s *memStorage) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.ObjectInfo
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ports.ObjectInfo{ObjectKey: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (s *memStorage) SignedURL(ctx context.Context, in ports.SignedURLInput) (ports.SignedURLOutput, error) {
	return ports.SignedURLOutput{
		URL:       "https://storage.example/" + in.ObjectKey + "?signed=1",
		ExpiresAt: time.Now().Add(in.ExpiresIn),
	}, nil
}

type fakeRuns struct {
	mu     sync.Mutex
	runs   map[string]*models.ExportRun
	failed map[string]string
	ready  map[string]string
}

func newFakeRuns(runs ...*models.ExportRun) *fakeRuns {
	f := &fakeRuns{
		runs:   map[string]*models.ExportRun{},
		failed: map[string]string{},
		ready:  map[string]string{},
	}
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return f
}

func (f *fakeRuns) Get(ctx context.Context, id string) (*models.ExportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, repositories.ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuns) MarkRendering(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	if r.Status != models.ExportPending {
		return false, nil
	}
	r.Status = models.ExportRendering
	return true, nil
}

func (f *fakeRuns) MarkReady(ctx context.Context, id, archiveKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Status = models.ExportReady
	f.ready[id] = archiveKey
	return nil
}

func (f *fakeRuns) MarkFailed(ctx context.Context, id, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Status = models.ExportFailed
	f.failed[id] = cause
	return nil
}

type fakeCarousels struct {
	carousel *models.Carousel
	slides   []models.Slide
}

func (f *fakeCarousels) Get(ctx context.Context, id string) (*models.Carousel, error) {
	return f.carousel, nil
}

func (f *fakeCarousels) Slides(ctx context.Context, carouselID string) ([]models.Slide, error) {
	return f.slides, nil
}

// fakeRenderer fails the first failFirst render calls, then succeeds.
type fakeRenderer struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	failAll   bool
}

func (r *fakeRenderer) Render(ctx context.Context, markup string, width, height int, format string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll || r.calls <= r.failFirst {
		return nil, fmt.Errorf("render crashed")
	}
	return []byte("image-" + format), nil
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func testRun() *models.ExportRun {
	return &models.ExportRun{
		ID:         "run1",
		OwnerID:    "u1",
		CarouselID: "c1",
		Format:     models.FormatPNG,
		Size:       models.ExportSize{Width: 1080, Height: 1350},
		Status:     models.ExportPending,
		CreatedAt:  time.Now(),
	}
}

func newTestOrchestrator(runs *fakeRuns, cars *fakeCarousels, st *memStorage, r engine.Renderer) *Orchestrator {
	signer := signing.New(st, "secret", "https://app.example.com")
	return New(Deps{
		Runs:        runs,
		Carousels:   cars,
		SP:          st,
		Renderer:    r,
		Resolver:    background.NewResolver(signer),
		Concurrency: 2,
		Log:         testLog(),
	})
}

func TestProcessRunHappyPath(t *testing.T) {
	runs := newFakeRuns(testRun())
	cars := &fakeCarousels{
		carousel: &models.Carousel{ID: "c1", OwnerID: "u1", Title: "t"},
		slides: []models.Slide{
			{CarouselID: "c1", Index: 0, Heading: "one"},
			{CarouselID: "c1", Index: 1, Heading: "two"},
		},
	}
	st := newMemStorage()

	o := newTestOrchestrator(runs, cars, st, &fakeRenderer{})
	if err := o.ProcessRun(context.Background(), "run1"); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	for _, key := range []string{
		"users/u1/carousels/c1/exports/run1/slides/0.png",
		"users/u1/carousels/c1/exports/run1/slides/1.png",
		"users/u1/carousels/c1/exports/run1/carousel.zip",
	} {
		if _, ok := st.objects[key]; !ok {
			t.Errorf("missing object %s", key)
		}
	}

	if runs.runs["run1"].Status != models.ExportReady {
		t.Errorf("status = %s, want ready", runs.runs["run1"].Status)
	}
	if runs.ready["run1"] != "users/u1/carousels/c1/exports/run1/carousel.zip" {
		t.Errorf("archive key = %q", runs.ready["run1"])
	}

	zr, err := zip.NewReader(bytes.NewReader(st.objects[runs.ready["run1"]]), int64(len(st.objects[runs.ready["run1"]])))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "0.png" || zr.File[1].Name != "1.png" {
		t.Errorf("archive entries wrong: %+v", zr.File)
	}
}

func TestProcessRunRetriesOnce(t *testing.T) {
	runs := newFakeRuns(testRun())
	cars := &fakeCarousels{
		carousel: &models.Carousel{ID: "c1"},
		slides:   []models.Slide{{CarouselID: "c1", Index: 0}},
	}
	st := newMemStorage()
	r := &fakeRenderer{failFirst: 1}

	o := newTestOrchestrator(runs, cars, st, r)
	if err := o.ProcessRun(context.Background(), "run1"); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}
	if r.calls != 2 {
		t.Errorf("render calls = %d, want 2 (one retry)", r.calls)
	}
	if runs.runs["run1"].Status != models.ExportReady {
		t.Errorf("status = %s, want ready", runs.runs["run1"].Status)
	}
}

func TestProcessRunFailsNamingSlide(t *testing.T) {
	runs := newFakeRuns(testRun())
	cars := &fakeCarousels{
		carousel: &models.Carousel{ID: "c1"},
		slides:   []models.Slide{{CarouselID: "c1", Index: 0}},
	}
	st := newMemStorage()

	o := newTestOrchestrator(runs, cars, st, &fakeRenderer{failAll: true})
	if err := o.ProcessRun(context.Background(), "run1"); err == nil {
		t.Fatal("expected failure")
	}

	if runs.runs["run1"].Status != models.ExportFailed {
		t.Fatalf("status = %s, want failed", runs.runs["run1"].Status)
	}
	if !strings.Contains(runs.failed["run1"], "slide 0") {
		t.Errorf("failure cause %q does not name the slide", runs.failed["run1"])
	}
	if _, ok := st.objects["users/u1/carousels/c1/exports/run1/carousel.zip"]; ok {
		t.Error("failed run must not produce an archive")
	}
}

// splitRenderer crashes any slide whose markup mentions "doomed" and renders
// everything else after a short delay, bailing out if its context dies.
type splitRenderer struct{}

func (splitRenderer) Render(ctx context.Context, markup string, width, height int, format string) ([]byte, error) {
	if strings.Contains(markup, "doomed") {
		return nil, fmt.Errorf("render crashed")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(50 * time.Millisecond):
		return []byte("image-" + format), nil
	}
}

func TestProcessRunFailureKeepsSiblingArtifacts(t *testing.T) {
	runs := newFakeRuns(testRun())
	cars := &fakeCarousels{
		carousel: &models.Carousel{ID: "c1", OwnerID: "u1"},
		slides: []models.Slide{
			{CarouselID: "c1", Index: 0, Heading: "doomed"},
			{CarouselID: "c1", Index: 1, Heading: "survivor"},
		},
	}
	st := newMemStorage()

	o := newTestOrchestrator(runs, cars, st, splitRenderer{})
	if err := o.ProcessRun(context.Background(), "run1"); err == nil {
		t.Fatal("expected failure")
	}

	if runs.runs["run1"].Status != models.ExportFailed {
		t.Fatalf("status = %s, want failed", runs.runs["run1"].Status)
	}
	if !strings.Contains(runs.failed["run1"], "slide 0") {
		t.Errorf("failure cause %q does not name the failing slide", runs.failed["run1"])
	}
	if _, ok := st.objects["users/u1/carousels/c1/exports/run1/slides/1.png"]; !ok {
		t.Error("sibling slide 1 was aborted: its still was never written")
	}
	if _, ok := st.objects["users/u1/carousels/c1/exports/run1/carousel.zip"]; ok {
		t.Error("failed run must not produce an archive")
	}
}

func TestProcessRunDropsAlreadyPicked(t *testing.T) {
	run := testRun()
	run.Status = models.ExportRendering
	runs := newFakeRuns(run)
	r := &fakeRenderer{}

	o := newTestOrchestrator(runs, &fakeCarousels{}, newMemStorage(), r)
	if err := o.ProcessRun(context.Background(), "run1"); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}
	if r.calls != 0 {
		t.Errorf("render calls = %d, want 0", r.calls)
	}
}

func TestProcessRunDropsUnknownRun(t *testing.T) {
	o := newTestOrchestrator(newFakeRuns(), &fakeCarousels{}, newMemStorage(), &fakeRenderer{})
	if err := o.ProcessRun(context.Background(), "ghost"); err != nil {
		t.Fatalf("unknown run must be dropped silently, got %v", err)
	}
}

func TestProcessRunRendersVideoVariants(t *testing.T) {
	bg := []byte(`{"kind":"image","slots":[{"url":"https://img.example/a.jpg","alternates":["https://img.example/b.jpg","https://img.example/c.jpg"]}]}`)
	runs := newFakeRuns(testRun())
	cars := &fakeCarousels{
		carousel: &models.Carousel{ID: "c1"},
		slides:   []models.Slide{{CarouselID: "c1", Index: 0, BackgroundJSON: bg}},
	}
	st := newMemStorage()

	o := newTestOrchestrator(runs, cars, st, &fakeRenderer{})
	if err := o.ProcessRun(context.Background(), "run1"); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	for _, key := range []string{
		"users/u1/carousels/c1/exports/run1/video-slides/0-0.png",
		"users/u1/carousels/c1/exports/run1/video-slides/0-1.png",
		"users/u1/carousels/c1/exports/run1/video-slides/0-2.png",
	} {
		if _, ok := st.objects[key]; !ok {
			t.Errorf("missing variant %s", key)
		}
	}
}

func TestProcessRunNoSlidesFails(t *testing.T) {
	runs := newFakeRuns(testRun())
	cars := &fakeCarousels{carousel: &models.Carousel{ID: "c1"}}

	o := newTestOrchestrator(runs, cars, newMemStorage(), &fakeRenderer{})
	if err := o.ProcessRun(context.Background(), "run1"); err == nil {
		t.Fatal("expected failure for empty carousel")
	}
	if runs.runs["run1"].Status != models.ExportFailed {
		t.Errorf("status = %s, want failed", runs.runs["run1"].Status)
	}
}
