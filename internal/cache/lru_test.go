// internal/cache/lru_test.go
//
// Run: go test ./internal/cache -v

package cache

import "testing"

func TestEviction(t *testing.T) {
	c := New(2)
	c.Add("a/1", 1)
	c.Add("a/2", 2)
	c.Add("a/3", 3) // evicts a/1

	if _, ok := c.Get("a/1"); ok {
		t.Error("oldest entry not evicted")
	}
	if v, ok := c.Get("a/2"); !ok || v.(int) != 2 {
		t.Errorf("a/2 = %v, %t", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New(2)
	c.Add("a/1", 1)
	c.Add("a/2", 2)
	c.Get("a/1")    // a/1 becomes MRU
	c.Add("a/3", 3) // evicts a/2, not a/1

	if _, ok := c.Get("a/1"); !ok {
		t.Error("recently used entry evicted")
	}
	if _, ok := c.Get("a/2"); ok {
		t.Error("least recently used entry survived")
	}
}

func TestRemovePrefix(t *testing.T) {
	c := New(8)
	c.Add("abc/index.html", 1)
	c.Add("abc/css/style.css", 2)
	c.Add("xyz/index.html", 3)

	c.RemovePrefix("abc/")

	if _, ok := c.Get("abc/index.html"); ok {
		t.Error("prefixed entry survived RemovePrefix")
	}
	if _, ok := c.Get("abc/css/style.css"); ok {
		t.Error("nested prefixed entry survived RemovePrefix")
	}
	if _, ok := c.Get("xyz/index.html"); !ok {
		t.Error("unrelated entry evicted")
	}
}
