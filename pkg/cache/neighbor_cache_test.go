package cache

import (
	"fmt"
	"testing"
)

func TestGetPut(t *testing.T) {
	c := NewNeighborCache(10)

	key := c.Key("node-1", "outgoing", "")
	if _, ok := c.Get(key); ok {
		t.Fatal("Expected miss on empty cache")
	}

	c.Put(key, []string{"a", "b"})
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected hit after Put")
	}
	if len(got.([]string)) != 2 {
		t.Errorf("Wrong cached value: %v", got)
	}

	// Same discriminators, same key; a differing one misses.
	if c.Key("node-1", "outgoing", "") != key {
		t.Error("Key must be deterministic")
	}
	if _, ok := c.Get(c.Key("node-1", "incoming", "")); ok {
		t.Error("Different discriminators must not hit")
	}
}

func TestKeySeparatorAmbiguity(t *testing.T) {
	c := NewNeighborCache(10)
	// "ab"+"c" and "a"+"bc" must not collide.
	if c.Key("ab", "c") == c.Key("a", "bc") {
		t.Error("Concatenation ambiguity in Key")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewNeighborCache(3)

	keys := make([]uint64, 4)
	for i := range keys {
		keys[i] = c.Key(fmt.Sprintf("node-%d", i))
		c.Put(keys[i], i)
	}

	if c.Len() != 3 {
		t.Fatalf("Expected 3 entries after eviction, got %d", c.Len())
	}
	if _, ok := c.Get(keys[0]); ok {
		t.Error("Oldest entry should have been evicted")
	}
	if _, ok := c.Get(keys[3]); !ok {
		t.Error("Newest entry should survive")
	}
}

func TestLRUTouchOnGet(t *testing.T) {
	c := NewNeighborCache(2)

	k1 := c.Key("n1")
	k2 := c.Key("n2")
	k3 := c.Key("n3")

	c.Put(k1, 1)
	c.Put(k2, 2)
	c.Get(k1) // touch: k2 is now the LRU entry
	c.Put(k3, 3)

	if _, ok := c.Get(k1); !ok {
		t.Error("Touched entry should survive eviction")
	}
	if _, ok := c.Get(k2); ok {
		t.Error("Untouched entry should have been evicted")
	}
}

func TestPurge(t *testing.T) {
	c := NewNeighborCache(10)
	c.Put(c.Key("n1"), 1)
	c.Put(c.Key("n2"), 2)

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after purge, got %d entries", c.Len())
	}
	if _, ok := c.Get(c.Key("n1")); ok {
		t.Error("Purged entry must not hit")
	}
}

func TestConcurrentGetPurge(t *testing.T) {
	// Get holds one write lock for lookup and MoveToFront, so a Purge
	// racing a hit can never re-insert an orphaned list element. The list
	// and the items map must agree on size afterwards.
	c := NewNeighborCache(64)
	for i := 0; i < 32; i++ {
		c.Put(c.Key(fmt.Sprintf("n%d", i)), i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			c.Get(c.Key(fmt.Sprintf("n%d", i%32)))
		}
	}()
	for i := 0; i < 200; i++ {
		c.Purge()
		c.Put(c.Key("refill"), i)
	}
	<-done

	if got, want := c.Len(), len(c.items); got != want {
		t.Errorf("List length %d disagrees with map size %d", got, want)
	}
	if c.Len() > 64 {
		t.Errorf("Cache grew past its max size: %d", c.Len())
	}
}

func TestStats(t *testing.T) {
	c := NewNeighborCache(10)
	key := c.Key("n1")

	c.Get(key) // miss
	c.Put(key, 1)
	c.Get(key) // hit
	c.Get(key) // hit

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Expected 2 hits / 1 miss, got %d / %d", s.Hits, s.Misses)
	}
	if s.Size != 1 || s.MaxSize != 10 {
		t.Errorf("Wrong size stats: %+v", s)
	}
}
