package reskit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/gobwas/glob"
)

// PayloadSuffix is appended to every cache file name.
const PayloadSuffix = ".downloaded_resource"

// PayloadCache stores downloaded payloads on disk under names derived
// from identity+freshness cache keys. The content of a cache file is the
// raw downloaded bytes (possibly still gzip-compressed); the name encodes
// only identity, never content.
//
// Writes are atomic: a payload is staged in a temp file and renamed onto
// its final name, so concurrent writers for the same key each produce a
// complete file and readers never observe a partial payload.
type PayloadCache struct {
	dir string
}

// NewPayloadCache returns a cache rooted at dir, creating it if needed.
func NewPayloadCache(dir string) (*PayloadCache, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &PayloadCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *PayloadCache) Dir() string {
	return c.dir
}

// Path returns the cache file path for a cache key. The name is a hex
// digest of the key, so it is filesystem-safe regardless of what the key
// contains.
func (c *PayloadCache) Path(key string) string {
	digest := xxhash.Sum64String(key)
	return filepath.Join(c.dir, fmt.Sprintf("%016x%s", digest, PayloadSuffix))
}

// Has reports whether a payload for key is already cached.
func (c *PayloadCache) Has(key string) bool {
	fi, err := os.Stat(c.Path(key))
	return err == nil && fi.Mode().IsRegular()
}

// Store writes the payload read from r under key and returns the final
// cache file path. An existing payload for the same key is replaced.
func (c *PayloadCache) Store(key string, r io.Reader) (string, error) {
	final := c.Path(key)

	tmp, err := os.CreateTemp(c.dir, filepath.Base(final)+".tmp*")
	if err != nil {
		return "", fmt.Errorf("stage cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close cache file: %w", err)
	}

	// Same-directory rename keeps the swap atomic.
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("commit cache file: %w", err)
	}
	return final, nil
}

// Entries returns the cached payload paths whose base names match the
// given glob pattern ("*" for everything). Sorted for stable output.
func (c *PayloadCache) Entries(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}

	var paths []string
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if filepath.Ext(name) != PayloadSuffix {
			continue
		}
		if g.Match(name) {
			paths = append(paths, filepath.Join(c.dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
