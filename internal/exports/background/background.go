// Package background turns a slide's declarative background descriptor into
// the concrete, ordered image source lists used for rendering and for
// video-variant generation.
package background

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/url"

	"slideloop/internal/exports/signing"
)

// MaxSources caps every resolved source list.
const MaxSources = 5

// Kind discriminates the descriptor union.
type Kind string

const (
	KindNone  Kind = "none"
	KindImage Kind = "image"
)

// Slot is one addressable background-image position. A slot sources its
// image either from a direct URL or from an owned stored object.
type Slot struct {
	URL       string `json:"url,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
	// Alternates are extra candidate URLs, meaningful only on single-slot
	// descriptors (shuffle and video variants).
	Alternates []string `json:"alternates,omitempty"`
}

// Descriptor is the closed background union: none | image.
type Descriptor struct {
	Kind  Kind   `json:"kind"`
	Slots []Slot `json:"slots,omitempty"`
}

// Decode validates a raw stored descriptor at the boundary. Unknown or
// unusable shapes degrade to the none variant rather than erroring.
func Decode(raw []byte) Descriptor {
	if len(raw) == 0 {
		return Descriptor{Kind: KindNone}
	}
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{Kind: KindNone}
	}
	if d.Kind != KindImage || len(d.Slots) == 0 {
		return Descriptor{Kind: KindNone}
	}
	return d
}

// Shuffle picks a new primary uniformly from the single slot's candidate
// pool (primary + alternates, http(s) only) and keeps the rest as alternates
// in their original relative order. Descriptors that are not single-slot, or
// whose pool has fewer than two usable URLs, come back unchanged.
func Shuffle(d Descriptor, rng *rand.Rand) Descriptor {
	if d.Kind != KindImage || len(d.Slots) != 1 {
		return d
	}
	slot := d.Slots[0]

	pool := make([]string, 0, 1+len(slot.Alternates))
	if validHTTPURL(slot.URL) {
		pool = append(pool, slot.URL)
	}
	for _, alt := range slot.Alternates {
		if validHTTPURL(alt) {
			pool = append(pool, alt)
		}
	}
	if len(pool) < 2 {
		return d
	}

	chosen := rng.IntN(len(pool))
	alternates := make([]string, 0, len(pool)-1)
	for i, u := range pool {
		if i != chosen {
			alternates = append(alternates, u)
		}
	}

	out := d
	out.Slots = []Slot{{
		URL:        pool[chosen],
		ObjectKey:  slot.ObjectKey,
		Alternates: alternates,
	}}
	return out
}

// Resolver resolves slots to fetchable URLs, using the signing layer for
// stored-object references.
type Resolver struct {
	signer *signing.Signer
}

func NewResolver(signer *signing.Signer) *Resolver {
	return &Resolver{signer: signer}
}

// Resolve produces the ordered render source list for one slide: up to
// MaxSources slots in order, one URL each. Slots that fail to resolve are
// skipped, never surfaced as errors; a none descriptor yields nil.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor) []string {
	if d.Kind != KindImage {
		return nil
	}
	out := make([]string, 0, MaxSources)
	for _, slot := range d.Slots {
		if len(out) == MaxSources {
			break
		}
		if u, ok := r.resolveSlot(ctx, slot); ok {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// VideoSources produces the variant source list the video step flips
// between. A single slot emits its primary plus up to four alternates;
// multiple slots emit one URL per slot. Cap is MaxSources either way.
func (r *Resolver) VideoSources(ctx context.Context, d Descriptor) []string {
	if d.Kind != KindImage {
		return nil
	}
	if len(d.Slots) != 1 {
		return r.Resolve(ctx, d)
	}

	slot := d.Slots[0]
	out := make([]string, 0, MaxSources)
	if u, ok := r.resolveSlot(ctx, slot); ok {
		out = append(out, u)
	}
	for _, alt := range slot.Alternates {
		if len(out) == MaxSources {
			break
		}
		if validHTTPURL(alt) {
			out = append(out, alt)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *Resolver) resolveSlot(ctx context.Context, slot Slot) (string, bool) {
	if validHTTPURL(slot.URL) {
		return slot.URL, true
	}
	if slot.ObjectKey != "" {
		u, err := r.signer.AccessURL(ctx, slot.ObjectKey, 0, "")
		if err != nil || u == "" {
			return "", false
		}
		return u, true
	}
	return "", false
}

func validHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
