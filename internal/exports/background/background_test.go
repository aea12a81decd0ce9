package background

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"testing"

	"slideloop/internal/exports/signing"
	"slideloop/internal/ports"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"empty", "", KindNone},
		{"garbage", "{not json", KindNone},
		{"unknown kind", `{"kind":"video"}`, KindNone},
		{"image without slots", `{"kind":"image"}`, KindNone},
		{"none", `{"kind":"none"}`, KindNone},
		{"image", `{"kind":"image","slots":[{"url":"https://a.example/x.png"}]}`, KindImage},
		{"extra fields ignored", `{"kind":"image","slots":[{"url":"https://a.example/x.png"}],"legacy":true}`, KindImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode([]byte(tt.raw)); got.Kind != tt.want {
				t.Errorf("Decode kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestShufflePreservesPool(t *testing.T) {
	desc := Descriptor{Kind: KindImage, Slots: []Slot{{
		URL:        "https://img.example/a.png",
		Alternates: []string{"https://img.example/b.png", "https://img.example/c.png"},
	}}}

	for seed := uint64(0); seed < 50; seed++ {
		got := Shuffle(desc, newRNG(seed))
		slot := got.Slots[0]

		poolSize := 1 + len(slot.Alternates)
		if poolSize != 3 {
			t.Fatalf("seed %d: pool shrank to %d", seed, poolSize)
		}
		seen := map[string]int{slot.URL: 1}
		for _, alt := range slot.Alternates {
			seen[alt]++
		}
		for u, n := range seen {
			if n != 1 {
				t.Fatalf("seed %d: %q appears %d times", seed, u, n)
			}
		}
	}
}

func TestShuffleChoosesEveryCandidate(t *testing.T) {
	desc := Descriptor{Kind: KindImage, Slots: []Slot{{
		URL:        "https://img.example/a.png",
		Alternates: []string{"https://img.example/b.png", "https://img.example/c.png"},
	}}}

	chosen := map[string]bool{}
	for seed := uint64(0); seed < 100; seed++ {
		chosen[Shuffle(desc, newRNG(seed)).Slots[0].URL] = true
	}
	if len(chosen) != 3 {
		t.Errorf("only %d of 3 candidates ever chosen: %v", len(chosen), chosen)
	}
}

func TestShuffleDeterministic(t *testing.T) {
	desc := Descriptor{Kind: KindImage, Slots: []Slot{{
		URL:        "https://img.example/a.png",
		Alternates: []string{"https://img.example/b.png", "https://img.example/c.png"},
	}}}

	a := Shuffle(desc, newRNG(7))
	b := Shuffle(desc, newRNG(7))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different results: %v vs %v", a, b)
	}
}

func TestShuffleNoOp(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
	}{
		{"none", Descriptor{Kind: KindNone}},
		{"no alternates", Descriptor{Kind: KindImage, Slots: []Slot{{URL: "https://img.example/a.png"}}}},
		{"empty pool", Descriptor{Kind: KindImage, Slots: []Slot{{URL: "not a url", Alternates: []string{"::broken"}}}}},
		{"one usable", Descriptor{Kind: KindImage, Slots: []Slot{{URL: "https://img.example/a.png", Alternates: []string{"::broken"}}}}},
		{"multi slot", Descriptor{Kind: KindImage, Slots: []Slot{{URL: "https://a.example/1.png"}, {URL: "https://a.example/2.png"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shuffle(tt.desc, newRNG(1))
			if !reflect.DeepEqual(got, tt.desc) {
				t.Errorf("Shuffle changed a descriptor it should not touch:\n got %+v\nwant %+v", got, tt.desc)
			}
		})
	}
}

type fakeSigned struct{ ports.StorageProvider }

func (fakeSigned) SignedURL(ctx context.Context, in ports.SignedURLInput) (ports.SignedURLOutput, error) {
	if in.ObjectKey == "broken/key.png" {
		return ports.SignedURLOutput{}, fmt.Errorf("no such object")
	}
	return ports.SignedURLOutput{URL: "https://storage.example/" + in.ObjectKey}, nil
}

func newTestResolver() *Resolver {
	return NewResolver(signing.New(fakeSigned{}, "secret", "https://app.example.com"))
}

func TestResolveMultiSlot(t *testing.T) {
	r := newTestResolver()

	desc := Descriptor{Kind: KindImage, Slots: []Slot{
		{URL: "https://img.example/1.png"},
		{ObjectKey: "uploads/2.png"},
		{URL: "::broken"},
		{ObjectKey: "broken/key.png"},
		{URL: "https://img.example/5.png"},
	}}

	got := r.Resolve(context.Background(), desc)
	want := []string{
		"https://img.example/1.png",
		"https://storage.example/uploads/2.png",
		"https://img.example/5.png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolveCap(t *testing.T) {
	r := newTestResolver()

	var slots []Slot
	for i := 0; i < 9; i++ {
		slots = append(slots, Slot{URL: fmt.Sprintf("https://img.example/%d.png", i)})
	}
	got := r.Resolve(context.Background(), Descriptor{Kind: KindImage, Slots: slots})
	if len(got) != MaxSources {
		t.Errorf("len = %d, want %d", len(got), MaxSources)
	}
}

func TestResolveNone(t *testing.T) {
	r := newTestResolver()
	if got := r.Resolve(context.Background(), Descriptor{Kind: KindNone}); got != nil {
		t.Errorf("Resolve(none) = %v, want nil", got)
	}
	empty := Descriptor{Kind: KindImage, Slots: []Slot{{URL: "::broken"}}}
	if got := r.Resolve(context.Background(), empty); got != nil {
		t.Errorf("Resolve(unusable) = %v, want nil", got)
	}
}

func TestVideoSourcesSingleSlot(t *testing.T) {
	r := newTestResolver()

	desc := Descriptor{Kind: KindImage, Slots: []Slot{{
		URL: "https://img.example/a.png",
		Alternates: []string{
			"https://img.example/b.png",
			"::broken",
			"https://img.example/c.png",
			"https://img.example/d.png",
			"https://img.example/e.png",
			"https://img.example/f.png",
		},
	}}}

	got := r.VideoSources(context.Background(), desc)
	if len(got) != MaxSources {
		t.Fatalf("len = %d, want %d", len(got), MaxSources)
	}
	if got[0] != "https://img.example/a.png" {
		t.Errorf("element 0 = %q, want the primary", got[0])
	}
	want := []string{
		"https://img.example/a.png",
		"https://img.example/b.png",
		"https://img.example/c.png",
		"https://img.example/d.png",
		"https://img.example/e.png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("VideoSources = %v, want %v", got, want)
	}
}

func TestVideoSourcesMultiSlot(t *testing.T) {
	r := newTestResolver()

	desc := Descriptor{Kind: KindImage, Slots: []Slot{
		{URL: "https://img.example/1.png", Alternates: []string{"https://img.example/x.png"}},
		{URL: "https://img.example/2.png"},
	}}

	got := r.VideoSources(context.Background(), desc)
	// Multi-slot emits one URL per slot; alternates do not apply.
	want := []string{"https://img.example/1.png", "https://img.example/2.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("VideoSources = %v, want %v", got, want)
	}
}

func TestVideoSourcesNone(t *testing.T) {
	r := newTestResolver()
	if got := r.VideoSources(context.Background(), Descriptor{Kind: KindNone}); got != nil {
		t.Errorf("VideoSources(none) = %v, want nil", got)
	}
}
