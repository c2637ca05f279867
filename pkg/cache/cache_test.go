package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestGetMissesOnEmptyCache(t *testing.T) {
	c := NewTTL[string](nil)
	if _, ok := c.Get(Key{ManagerID: "m1", ParkID: "p1"}); ok {
		t.Fatal("expected miss")
	}
}

func TestSetThenGetWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTL[string](clock)
	key := Key{ManagerID: "m1", ParkID: "p1"}

	c.Set(key, "drivers", 15*time.Second)

	clock.Advance(14 * time.Second)
	got, ok := c.Get(key)
	if !ok || got != "drivers" {
		t.Fatalf("expected hit, got %q ok=%v", got, ok)
	}
}

func TestEntryExpiresAtDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTL[int](clock)
	key := Key{ManagerID: "m1", ParkID: "p1"}

	c.Set(key, 42, 15*time.Second)
	clock.Advance(15 * time.Second)

	if _, ok := c.Get(key); ok {
		t.Fatal("entry at the deadline must be expired")
	}
	// Expired entry is removed lazily on read.
	if _, ok := c.Get(key); ok {
		t.Fatal("expired entry must stay gone")
	}
}

func TestKeysAreScopedPerManagerPark(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTL[string](clock)

	c.Set(Key{ManagerID: "m1", ParkID: "p1"}, "one", time.Minute)

	if _, ok := c.Get(Key{ManagerID: "m1", ParkID: "p2"}); ok {
		t.Fatal("different park must miss")
	}
	if _, ok := c.Get(Key{ManagerID: "m2", ParkID: "p1"}); ok {
		t.Fatal("different manager must miss")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTL[string](clock)
	key := Key{ManagerID: "m1", ParkID: "p1"}

	c.Set(key, "x", time.Minute)
	c.Delete(key)
	if _, ok := c.Get(key); ok {
		t.Fatal("deleted entry must miss")
	}
}

func TestNonPositiveTTLIsIgnored(t *testing.T) {
	c := NewTTL[string](nil)
	key := Key{ManagerID: "m1", ParkID: "p1"}
	c.Set(key, "x", 0)
	if _, ok := c.Get(key); ok {
		t.Fatal("zero TTL must not store")
	}
}
