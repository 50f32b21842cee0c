package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type record struct {
	Names []string `json:"names"`
	Lines int      `json:"lines"`
}

func newCache(t *testing.T, ttlHours int) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), ttlHours, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	// Test enabled cache
	c, err := New(filepath.Join(tmpDir, "nested", "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}
	if _, err := os.Stat(c.Dir()); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}

	// Test disabled cache
	c, err = New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}

	var nilCache *Cache
	if nilCache.Enabled() {
		t.Error("nil cache should be disabled")
	}
}

func TestStoreAndLoad(t *testing.T) {
	c := newCache(t, 24)

	in := record{Names: []string{"Foo", "bar"}, Lines: 12}
	if err := c.Store("/p/a.dart", "hash1", in); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	var out record
	if !c.Load("/p/a.dart", "hash1", &out) {
		t.Fatal("Load() should hit for matching hash")
	}
	if out.Lines != 12 || len(out.Names) != 2 || out.Names[1] != "bar" {
		t.Errorf("Load() = %+v, want %+v", out, in)
	}

	if c.Load("/p/a.dart", "hash2", &out) {
		t.Error("Load() should miss for a different hash")
	}
	if c.Load("/p/other.dart", "hash1", &out) {
		t.Error("Load() should miss for an unknown key")
	}
}

func TestLoadCorruptEntry(t *testing.T) {
	c := newCache(t, 24)

	path := c.keyPath("bad")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	var out record
	if c.Load("bad", "h", &out) {
		t.Error("Load() should miss for corrupt entry")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry should be removed")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newCache(t, 1)

	if err := c.Store("k", "h", record{Lines: 1}); err != nil {
		t.Fatal(err)
	}
	c.ttl = time.Nanosecond
	time.Sleep(time.Millisecond)

	var out record
	if c.Load("k", "h", &out) {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.keyPath("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestInvalidate(t *testing.T) {
	c := newCache(t, 24)

	if err := c.Store("k", "h", record{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	var out record
	if c.Load("k", "h", &out) {
		t.Error("Load() should miss after Invalidate")
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() of a missing key should not fail: %v", err)
	}
}

func TestClear(t *testing.T) {
	c := newCache(t, 24)

	for _, k := range []string{"a", "b"} {
		if err := c.Store(k, "h", record{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := os.Stat(c.Dir()); !os.IsNotExist(err) {
		t.Error("Clear() should remove the cache directory")
	}
}

func TestDisabledCache(t *testing.T) {
	c, err := New("", 0, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Store("k", "h", record{}); err != nil {
		t.Errorf("Store() on disabled cache should be a no-op: %v", err)
	}
	var out record
	if c.Load("k", "h", &out) {
		t.Error("disabled cache should never hit")
	}
	stats, err := c.GetStats()
	if err != nil || stats.Entries != 0 {
		t.Errorf("GetStats() = %+v, %v", stats, err)
	}
}

func TestFingerprint(t *testing.T) {
	content := []byte("void main() {}")

	base := Fingerprint(content, "functions=true")
	if base != Fingerprint(content, "functions=true") {
		t.Error("fingerprint should be stable")
	}
	if base == Fingerprint(content, "functions=false") {
		t.Error("settings should change the fingerprint")
	}
	if base == Fingerprint([]byte("void main() { }"), "functions=true") {
		t.Error("content should change the fingerprint")
	}
}

func TestGetStats(t *testing.T) {
	c := newCache(t, 24)

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Store(k, "h", record{Lines: 3}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.TotalSize <= 0 {
		t.Error("TotalSize should be positive")
	}
}

func TestKeyPathSpecialCharacters(t *testing.T) {
	c := newCache(t, 24)

	key := "/root/my project/lib/a b.dart?x=1"
	if err := c.Store(key, "h", record{Lines: 7}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	var out record
	if !c.Load(key, "h", &out) || out.Lines != 7 {
		t.Error("keys with special characters should round-trip")
	}
	if filepath.Dir(c.keyPath(key)) != c.Dir() {
		t.Error("key path should live directly in the cache directory")
	}
}
