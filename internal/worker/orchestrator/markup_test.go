package orchestrator

import (
	"strings"
	"testing"

	"slideloop/internal/models"
)

func TestBuildSlideMarkupDefaultTemplate(t *testing.T) {
	slide := models.Slide{Heading: "Hello & welcome", Body: "line <one>"}
	urls := []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}

	out, err := BuildSlideMarkup("", slide, urls, 1080, 1350)
	if err != nil {
		t.Fatalf("BuildSlideMarkup: %v", err)
	}

	for _, want := range []string{
		"Hello &amp; welcome",
		"line &lt;one&gt;",
		"width: 1080px",
		"height: 1350px",
		`url('https://img.example/a.jpg')`,
		`url('https://img.example/b.jpg')`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markup missing %q", want)
		}
	}

	// Layer order is the slot order: first URL is the bottom layer.
	if strings.Index(out, "a.jpg") > strings.Index(out, "b.jpg") {
		t.Error("background layers out of order")
	}
}

func TestBuildSlideMarkupCarouselTemplate(t *testing.T) {
	tmpl := `<html><body><h2>{{.Heading}}</h2>{{.BackgroundLayers}}</body></html>`
	slide := models.Slide{Heading: "custom"}

	out, err := BuildSlideMarkup(tmpl, slide, []string{"https://img.example/x.png"}, 1080, 1080)
	if err != nil {
		t.Fatalf("BuildSlideMarkup: %v", err)
	}
	if !strings.Contains(out, "<h2>custom</h2>") {
		t.Errorf("carousel template not applied: %s", out)
	}
	if !strings.Contains(out, "x.png") {
		t.Error("background layer missing from carousel template")
	}
}

func TestBuildSlideMarkupEscapesBackgroundURL(t *testing.T) {
	out, err := BuildSlideMarkup("", models.Slide{}, []string{`https://img.example/a.jpg?x='y'`}, 1080, 1080)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, `url('https://img.example/a.jpg?x='y'')`) {
		t.Error("single quotes in URL must be escaped")
	}
}

func TestBuildSlideMarkupBadTemplate(t *testing.T) {
	if _, err := BuildSlideMarkup("{{.Heading", models.Slide{}, nil, 1080, 1080); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBuildSlideMarkupNoBackgrounds(t *testing.T) {
	out, err := BuildSlideMarkup("", models.Slide{Heading: "h"}, nil, 1080, 1920)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, `class="bg"`) {
		t.Error("expected no background layers")
	}
}
