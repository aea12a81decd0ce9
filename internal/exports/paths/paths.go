// Package paths derives the canonical object keys for export artifacts.
// The naming scheme is a contract shared with the video-assembly and polling
// collaborators: deriving the same (owner, carousel, run, slide, variant)
// tuple always yields the same key, and video-slide names round-trip back to
// their (slide, variant) pair exactly.
package paths

import (
	"fmt"
	"strconv"
	"strings"
)

const stillExt = ".png"

// Set bundles the deterministic keys for one (owner, carousel, run) triple.
type Set struct {
	base string
}

// Resolve builds the key set for an export run. Inputs are assumed to be
// non-empty identifiers; no I/O happens here.
func Resolve(ownerID, carouselID, runID string) Set {
	return Set{
		base: fmt.Sprintf("users/%s/carousels/%s/exports/%s", ownerID, carouselID, runID),
	}
}

// Still is the key of the composited still for one slide.
func (s Set) Still(slideIndex int) string {
	return fmt.Sprintf("%s/slides/%d%s", s.base, slideIndex, stillExt)
}

// StillFor is Still with the extension matching the run's raster format.
func (s Set) StillFor(slideIndex int, format string) string {
	ext := stillExt
	if format == "jpg" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/slides/%d%s", s.base, slideIndex, ext)
}

// VideoSlide is the key of one background variant of one slide.
func (s Set) VideoSlide(slideIndex, variantIndex int) string {
	return fmt.Sprintf("%s/video-slides/%d-%d%s", s.base, slideIndex, variantIndex, stillExt)
}

// StillsPrefix is the listing prefix under which the run's stills live.
func (s Set) StillsPrefix() string {
	return s.base + "/slides/"
}

// Background is the key a re-hosted foreign background image is stored
// under for one slide's source position.
func (s Set) Background(slideIndex, sourceIndex int) string {
	return fmt.Sprintf("%s/backgrounds/%d-%d.jpg", s.base, slideIndex, sourceIndex)
}

// VideoSlidesPrefix is the listing prefix under which all video-slide
// variants of the run live.
func (s Set) VideoSlidesPrefix() string {
	return s.base + "/video-slides/"
}

// Archive is the key of the final downloadable zip.
func (s Set) Archive() string {
	return s.base + "/carousel.zip"
}

// ParseStillName recovers the slide index from a still base name such as
// "3.png" or "3.jpg".
func ParseStillName(base string) (slideIndex int, ok bool) {
	name, found := strings.CutSuffix(base, ".png")
	if !found {
		name, found = strings.CutSuffix(base, ".jpg")
	}
	if !found {
		return 0, false
	}
	slideIndex, err := parseIndex(name)
	if err != nil {
		return 0, false
	}
	return slideIndex, true
}

// ParseVideoSlideName recovers the (slideIndex, variantIndex) pair from a
// video-slide base name such as "3-1.png". It is the exact inverse of the
// VideoSlide naming and reports ok=false for anything else.
func ParseVideoSlideName(base string) (slideIndex, variantIndex int, ok bool) {
	name, found := strings.CutSuffix(base, stillExt)
	if !found {
		return 0, 0, false
	}
	left, right, found := strings.Cut(name, "-")
	if !found {
		return 0, 0, false
	}
	slideIndex, err := parseIndex(left)
	if err != nil {
		return 0, 0, false
	}
	variantIndex, err = parseIndex(right)
	if err != nil {
		return 0, 0, false
	}
	return slideIndex, variantIndex, true
}

// parseIndex accepts the canonical decimal form only, so that parse∘format
// is the identity: no signs, no leading zeros (except "0" itself).
func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
