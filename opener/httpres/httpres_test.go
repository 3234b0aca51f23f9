package httpres

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/gobeaver/reskit"
)

const lastModified = "Mon, 01 Jan 2024 00:00:00 GMT"

// payloadServer serves a fixed payload, answering HEAD with metadata and
// counting requests per method.
type payloadServer struct {
	*httptest.Server
	payload    []byte
	heads      atomic.Int32
	gets       atomic.Int32
	headStatus int
}

func newPayloadServer(t *testing.T, payload []byte) *payloadServer {
	t.Helper()
	ps := &payloadServer{payload: payload, headStatus: http.StatusOK}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			ps.heads.Add(1)
			if ps.headStatus != http.StatusOK {
				w.WriteHeader(ps.headStatus)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(ps.payload)))
			w.Header().Set("Last-Modified", lastModified)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			ps.gets.Add(1)
			w.Header().Set("Last-Modified", lastModified)
			w.Write(ps.payload)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func testConfig(t *testing.T) *reskit.Config {
	t.Helper()
	cfg := reskit.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	return cfg
}

func gzipBytes(t *testing.T, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(content); err != nil {
		t.Fatalf("gzip write error = %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close error = %v", err)
	}
	return buf.Bytes()
}

func TestProbeRecordsMetadata(t *testing.T) {
	payload := []byte("remote payload body")
	srv := newPayloadServer(t, payload)

	op, err := New(context.Background(), testConfig(t), srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if n, _ := op.DataLength(); n != int64(len(payload)) {
		t.Errorf("DataLength() = %d, want %d", n, len(payload))
	}
	key, _ := op.CacheKey()
	if key != srv.URL+"|"+lastModified {
		t.Errorf("CacheKey() = %q, want URL|Last-Modified", key)
	}
	if op.ForceDownload() {
		t.Error("ForceDownload() = true after successful HEAD")
	}
	if srv.heads.Load() != 1 {
		t.Errorf("server saw %d HEAD requests, want 1", srv.heads.Load())
	}
}

func TestProbe405ForcesDownload(t *testing.T) {
	payload := []byte("no HEAD support here")
	srv := newPayloadServer(t, payload)
	srv.headStatus = http.StatusMethodNotAllowed

	op, err := New(context.Background(), testConfig(t), srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !op.ForceDownload() {
		t.Error("ForceDownload() = false after 405 probe")
	}

	rc, err := op.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, payload) {
		t.Errorf("content = %q, want %q", got, payload)
	}
}

func TestProbeBadStatusIsFatal(t *testing.T) {
	srv := newPayloadServer(t, []byte("x"))
	srv.headStatus = http.StatusInternalServerError

	_, err := New(context.Background(), testConfig(t), srv.URL)
	if err == nil {
		t.Fatal("New() error = nil, want bad status")
	}
	if !reskit.IsBadStatus(err) {
		t.Errorf("IsBadStatus(%v) = false, want true", err)
	}
	// Protocol errors are not retried.
	if srv.heads.Load() != 1 {
		t.Errorf("server saw %d HEAD requests, want 1", srv.heads.Load())
	}
}

func TestProbeRetriesTransportErrorOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the first probe mid-flight.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack error = %v", err)
			}
			conn.Close()
			return
		}
		w.Header().Set("Content-Length", "3")
		w.Header().Set("Last-Modified", lastModified)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	op, err := New(context.Background(), testConfig(t), srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v (probe should retry once)", err)
	}
	if n, _ := op.DataLength(); n != 3 {
		t.Errorf("DataLength() = %d, want 3", n)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d probes, want 2", calls.Load())
	}
}

func TestFilenameDownloadsOnce(t *testing.T) {
	payload := []byte("cacheable body")
	srv := newPayloadServer(t, payload)
	cfg := testConfig(t)

	op, err := New(context.Background(), cfg, srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first, err := op.Filename(context.Background())
	if err != nil {
		t.Fatalf("Filename() error = %v", err)
	}
	second, err := op.Filename(context.Background())
	if err != nil {
		t.Fatalf("Filename() error = %v", err)
	}
	if first != second {
		t.Errorf("Filename() unstable: %q vs %q", first, second)
	}
	if srv.gets.Load() != 1 {
		t.Errorf("server saw %d GET requests, want 1 (second call reuses cache)", srv.gets.Load())
	}

	// A second instance for the same URL and freshness resolves to the
	// same cache file without downloading again.
	op2, err := New(context.Background(), cfg, srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	other, err := op2.Filename(context.Background())
	if err != nil {
		t.Fatalf("Filename() error = %v", err)
	}
	if other != first {
		t.Errorf("second instance resolved %q, want %q", other, first)
	}
	if srv.gets.Load() != 1 {
		t.Errorf("server saw %d GET requests, want 1 (instances share the cache)", srv.gets.Load())
	}
}

func TestUseCacheDisabledRedownloads(t *testing.T) {
	srv := newPayloadServer(t, []byte("fresh every time"))

	op, err := New(context.Background(), testConfig(t), srv.URL, WithUseCache(false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := op.Filename(context.Background()); err != nil {
		t.Fatalf("Filename() error = %v", err)
	}
	if _, err := op.download(context.Background()); err != nil {
		t.Fatalf("download() error = %v", err)
	}
	if srv.gets.Load() != 2 {
		t.Errorf("server saw %d GET requests, want 2 with caching disabled", srv.gets.Load())
	}
}

func TestOpenGzipResolvesViaCachedDownload(t *testing.T) {
	uncompressed := []byte("ammo line one\nammo line two\n")
	srv := newPayloadServer(t, gzipBytes(t, uncompressed))
	cfg := testConfig(t)

	op, err := New(context.Background(), cfg, srv.URL+"/data.tar.gz")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rc, err := op.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	if _, ok := rc.(*StreamReader); ok {
		t.Fatal("gzip payload resolved to a stream, want cached download")
	}

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, uncompressed) {
		t.Errorf("content = %q, want decompressed payload %q", got, uncompressed)
	}

	cache, err := reskit.NewPayloadCache(cfg.CacheDir)
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}
	entries, err := cache.Entries("*")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("cache holds %d payloads, want 1", len(entries))
	}
}

func TestOpenStreamsLargeNonGzip(t *testing.T) {
	payload := []byte("line one\nline two\nline three without newline")
	srv := newPayloadServer(t, payload)

	cfg := testConfig(t)
	cfg.StreamThresholdBytes = 10 // force the streaming decision

	op, err := New(context.Background(), cfg, srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rc, err := op.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	stream, ok := rc.(*StreamReader)
	if !ok {
		t.Fatalf("Open() returned %T, want *StreamReader", rc)
	}

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("streamed content = %q, want %q", got, payload)
	}

	cache, err := reskit.NewPayloadCache(cfg.CacheDir)
	if err != nil {
		t.Fatalf("NewPayloadCache() error = %v", err)
	}
	entries, err := cache.Entries("*")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("streaming path wrote %d cache files, want 0", len(entries))
	}
}

func TestOpenLargeGzipStillDownloads(t *testing.T) {
	uncompressed := bytes.Repeat([]byte("gzip wins over size\n"), 8)
	srv := newPayloadServer(t, gzipBytes(t, uncompressed))

	cfg := testConfig(t)
	cfg.StreamThresholdBytes = 1 // gzip must override the size decision

	op, err := New(context.Background(), cfg, srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rc, err := op.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	if _, ok := rc.(*StreamReader); ok {
		t.Fatal("large gzip payload resolved to a stream, want cached download")
	}
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, uncompressed) {
		t.Errorf("content = %q, want %q", got, uncompressed)
	}
}

func TestOpenBadStatusOnGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "4")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	op, err := New(context.Background(), testConfig(t), srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = op.Open(context.Background())
	if err == nil {
		t.Fatal("Open() error = nil, want bad status")
	}
	if !reskit.IsBadStatus(err) {
		t.Errorf("IsBadStatus(%v) = false, want true", err)
	}
}
