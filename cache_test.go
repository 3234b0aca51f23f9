package reskit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPayloadCachePath(t *testing.T) {
	cache, err := NewPayloadCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}

	key := "https://example.test/data.gz|Mon, 01 Jan 2024 00:00:00 GMT"

	first := cache.Path(key)
	second := cache.Path(key)
	if first != second {
		t.Errorf("Path() not deterministic: %q vs %q", first, second)
	}
	if !strings.HasSuffix(first, PayloadSuffix) {
		t.Errorf("Path() = %q, want %s suffix", first, PayloadSuffix)
	}

	base := strings.TrimSuffix(filepath.Base(first), PayloadSuffix)
	if len(base) != 16 {
		t.Errorf("digest %q has length %d, want 16 hex chars", base, len(base))
	}

	other := cache.Path("https://example.test/data.gz|Tue, 02 Jan 2024 00:00:00 GMT")
	if other == first {
		t.Error("Path() identical for different freshness indicators")
	}
}

func TestPayloadCacheStore(t *testing.T) {
	cache, err := NewPayloadCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}

	key := "https://example.test/payload|"
	if cache.Has(key) {
		t.Fatal("Has() = true before Store")
	}

	path, err := cache.Store(key, strings.NewReader("payload-bytes"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if path != cache.Path(key) {
		t.Errorf("Store() path = %q, want %q", path, cache.Path(key))
	}
	if !cache.Has(key) {
		t.Error("Has() = false after Store")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "payload-bytes" {
		t.Errorf("cached content = %q, want %q", content, "payload-bytes")
	}

	// Overwrite replaces the payload.
	if _, err := cache.Store(key, strings.NewReader("second")); err != nil {
		t.Fatalf("Store() overwrite error = %v", err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "second" {
		t.Errorf("cached content after overwrite = %q, want %q", content, "second")
	}
}

func TestPayloadCacheStoreLeavesNoStaging(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewPayloadCache(dir)
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}

	if _, err := cache.Store("key-a", strings.NewReader("a")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if _, err := cache.Store("key-b", strings.NewReader("b")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, de := range dirents {
		if !strings.HasSuffix(de.Name(), PayloadSuffix) {
			t.Errorf("unexpected staging file left behind: %s", de.Name())
		}
	}
	if len(dirents) != 2 {
		t.Errorf("cache dir holds %d files, want 2", len(dirents))
	}
}

func TestPayloadCacheEntries(t *testing.T) {
	cache, err := NewPayloadCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}

	for _, key := range []string{"one", "two", "three"} {
		if _, err := cache.Store(key, strings.NewReader(key)); err != nil {
			t.Fatalf("Store(%q) error = %v", key, err)
		}
	}

	all, err := cache.Entries("*")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Entries(\"*\") = %d paths, want 3", len(all))
	}

	digest := filepath.Base(cache.Path("one"))
	matched, err := cache.Entries(digest)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(matched) != 1 || matched[0] != cache.Path("one") {
		t.Errorf("Entries(%q) = %v, want [%s]", digest, matched, cache.Path("one"))
	}

	if _, err := cache.Entries("[bad"); err == nil {
		t.Error("Entries() with invalid pattern: want error, got nil")
	}
}

func TestNewPayloadCacheDefaultsToTempDir(t *testing.T) {
	cache, err := NewPayloadCache("")
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}
	if cache.Dir() != os.TempDir() {
		t.Errorf("Dir() = %q, want %q", cache.Dir(), os.TempDir())
	}
}
