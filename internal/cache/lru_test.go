package cache

import (
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	c := New[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache returned a value")
	}

	c.Put("a", "one")
	if v, ok := c.Get("a"); !ok || v != "one" {
		t.Errorf("Get(a) = (%q, %v), want one", v, ok)
	}

	c.Put("a", "two")
	if v, _ := c.Get("a"); v != "two" {
		t.Errorf("Get(a) after overwrite = %q, want two", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // refresh a
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive, it was used most recently")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestExpiry(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)

	c.Put("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry missing")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry still served")
	}
}

func TestInvalidateAndFlush(t *testing.T) {
	c := New[int](10, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry still present")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unrelated entry dropped by Invalidate")
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len after Flush = %d, want 0", c.Len())
	}
}

func TestPurgeExpired(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)

	c.Put("a", 1)
	c.Put("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Put("c", 3)

	if n := c.PurgeExpired(); n != 2 {
		t.Errorf("PurgeExpired = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
