package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/policygap/internal/model"
)

func TestKey_StableAndNamespaced(t *testing.T) {
	a := Key("structured", "prompt", "Type")
	b := Key("structured", "prompt", "Type")
	if a != b {
		t.Errorf("expected stable keys, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "policygap:v1:structured:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
	if Key("structured", "prom", "ptType") == a {
		t.Error("part boundaries must affect the key")
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	value := []byte("hello")
	if err := c.Set("k", value, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'j'

	got, ok := c.Get("k")
	if !ok || string(got) != "hello" {
		t.Errorf("expected stored copy %q, got %q (found=%v)", "hello", got, ok)
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_ExpiryAndPersistence(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("test", "a")
	if err := c.Set(key, []byte(`{"ok":true}`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A second instance over the same directory sees the entry
	other := NewDiskCache(dir, time.Hour)
	got, ok := other.Get(key)
	if !ok || string(got) != `{"ok":true}` {
		t.Errorf("expected persisted entry, got %q (found=%v)", got, ok)
	}

	if err := c.Set(key, []byte("stale"), -time.Second); err != nil {
		t.Fatalf("set expired: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}

	if err := c.Delete(Key("test", "missing")); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	NewDiskCache(dir, time.Hour).Set("k", []byte("v"), 0)

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if _, ok := c.memory.Get("k"); ok {
		t.Fatal("memory layer should start empty")
	}
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("expected disk hit, got %q", got)
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("expected disk hit to be promoted to memory")
	}
}

func TestNew_Disabled(t *testing.T) {
	c := New(model.CacheConfig{Enabled: false})
	_ = c.Set("k", []byte("v"), 0)
	if _, ok := c.Get("k"); ok {
		t.Error("disabled cache should never hit")
	}
}
