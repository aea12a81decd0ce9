package paths

import (
	"path"
	"strings"
	"testing"
)

func TestResolveKeys(t *testing.T) {
	set := Resolve("usr_1", "car_2", "run_3")

	if got, want := set.Still(0), "users/usr_1/carousels/car_2/exports/run_3/slides/0.png"; got != want {
		t.Errorf("Still(0) = %q, want %q", got, want)
	}
	if got, want := set.VideoSlide(4, 2), "users/usr_1/carousels/car_2/exports/run_3/video-slides/4-2.png"; got != want {
		t.Errorf("VideoSlide(4,2) = %q, want %q", got, want)
	}
	if got, want := set.Archive(), "users/usr_1/carousels/car_2/exports/run_3/carousel.zip"; got != want {
		t.Errorf("Archive() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(set.VideoSlide(0, 0), set.VideoSlidesPrefix()) {
		t.Errorf("video slide key %q not under prefix %q", set.VideoSlide(0, 0), set.VideoSlidesPrefix())
	}
}

func TestStillFor(t *testing.T) {
	set := Resolve("u", "c", "r")

	if got, want := set.StillFor(3, "png"), "users/u/carousels/c/exports/r/slides/3.png"; got != want {
		t.Errorf("StillFor(3, png) = %q, want %q", got, want)
	}
	if got, want := set.StillFor(3, "jpg"), "users/u/carousels/c/exports/r/slides/3.jpg"; got != want {
		t.Errorf("StillFor(3, jpg) = %q, want %q", got, want)
	}
	if !strings.HasPrefix(set.StillFor(3, "jpg"), set.StillsPrefix()) {
		t.Errorf("still key %q not under prefix %q", set.StillFor(3, "jpg"), set.StillsPrefix())
	}
}

func TestBackgroundKey(t *testing.T) {
	set := Resolve("u", "c", "r")
	if got, want := set.Background(2, 1), "users/u/carousels/c/exports/r/backgrounds/2-1.jpg"; got != want {
		t.Errorf("Background(2,1) = %q, want %q", got, want)
	}
}

func TestParseStillName(t *testing.T) {
	for name, want := range map[string]int{"0.png": 0, "12.png": 12, "7.jpg": 7} {
		got, ok := ParseStillName(name)
		if !ok || got != want {
			t.Errorf("ParseStillName(%q) = (%d,%v), want (%d,true)", name, got, ok, want)
		}
	}
	for _, name := range []string{"", "x.png", "01.png", "1.gif", "1-2.png", "1"} {
		if _, ok := ParseStillName(name); ok {
			t.Errorf("ParseStillName(%q) = ok, want reject", name)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	a := Resolve("u", "c", "r")
	b := Resolve("u", "c", "r")
	if a.Still(7) != b.Still(7) || a.VideoSlide(7, 3) != b.VideoSlide(7, 3) {
		t.Error("re-deriving the same tuple produced different keys")
	}
}

func TestVideoSlideNameRoundTrip(t *testing.T) {
	set := Resolve("u", "c", "r")

	// Sweep small indexes densely, large ones sparsely up to 10^6.
	indexes := []int{0, 1, 2, 3, 9, 10, 11, 99, 100, 101, 4096, 65535, 999999}
	for _, i := range indexes {
		for _, v := range indexes {
			base := path.Base(set.VideoSlide(i, v))
			gotI, gotV, ok := ParseVideoSlideName(base)
			if !ok {
				t.Fatalf("ParseVideoSlideName(%q) not ok", base)
			}
			if gotI != i || gotV != v {
				t.Fatalf("round trip (%d,%d) -> %q -> (%d,%d)", i, v, base, gotI, gotV)
			}
		}
	}
}

func TestParseVideoSlideNameRejects(t *testing.T) {
	bad := []string{
		"",
		"1.png",
		"1-2",
		"1-2.jpg",
		"-1-2.png",
		"1--2.png",
		"a-b.png",
		"01-2.png",
		"1-02.png",
		"1-2-3.png",
		"1-+2.png",
	}
	for _, name := range bad {
		if _, _, ok := ParseVideoSlideName(name); ok {
			t.Errorf("ParseVideoSlideName(%q) = ok, want reject", name)
		}
	}
}
