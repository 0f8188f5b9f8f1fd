package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestTTLCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New[string, int](time.Minute, 0)
	c.now = clock.now

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}
	clock.t = clock.t.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired early")
	}
	clock.t = clock.t.Add(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expiry, want 0", c.Len())
	}
}

func TestTTLCacheSetRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New[string, int](time.Minute, 0)
	c.now = clock.now

	c.Set("a", 1)
	clock.t = clock.t.Add(50 * time.Second)
	c.Set("a", 2)
	clock.t = clock.t.Add(50 * time.Second)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %v, %v; want 2, true", v, ok)
	}
}

func TestTTLCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](0, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s missing", k)
		}
	}
	s := c.Stats()
	if s.Evictions != 1 || s.Size != 2 || s.MaxSize != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.Hits != 3 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 3/1", s.Hits, s.Misses)
	}
}

func TestTTLCacheRemoveAndInvalidate(t *testing.T) {
	c := New[int, string](0, 0)
	c.Set(1, "one")
	c.Set(2, "two")
	c.Remove(1)
	if _, ok := c.Get(1); ok {
		t.Error("1 still present after Remove")
	}
	c.Invalidate()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Invalidate", c.Len())
	}
}
