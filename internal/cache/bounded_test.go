package cache

import (
	"fmt"
	"testing"
)

func TestSetGet(t *testing.T) {
	c := NewBounded(8)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q,%v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get(missing) should not be found")
	}

	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Fatalf("overwrite failed, got %q", v)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestBatchEviction(t *testing.T) {
	c := NewBounded(32)

	for i := 0; i < 32; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
	}
	if c.Len() != 32 {
		t.Fatalf("Len = %d, want 32", c.Len())
	}

	// One more insert evicts a whole batch of the oldest entries.
	c.Set("k32", "v")
	if got, want := c.Len(), 32-DefaultEvictBatch+1; got != want {
		t.Fatalf("Len after eviction = %d, want %d", got, want)
	}

	// Oldest entries are gone, newest survive.
	for i := 0; i < DefaultEvictBatch; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			t.Errorf("k%d survived eviction", i)
		}
	}
	if _, ok := c.Get("k31"); !ok {
		t.Error("recent entry k31 was evicted")
	}
	if _, ok := c.Get("k32"); !ok {
		t.Error("just-inserted entry k32 missing")
	}
}

func TestTinyCapacity(t *testing.T) {
	c := NewBounded(2)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	if c.Len() > 2 {
		t.Fatalf("Len = %d, want <= 2", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry missing after eviction")
	}
}
