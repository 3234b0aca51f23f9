package reskit

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipReadCloser decompresses rc transparently; Close closes the gzip
// reader and the underlying stream.
type gzipReadCloser struct {
	zr *gzip.Reader
	rc io.ReadCloser
}

// NewGzipReadCloser wraps rc in a transparent gzip decompressor whose
// Close also closes rc. Used by openers after sniffing the gzip magic.
func NewGzipReadCloser(rc io.ReadCloser) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(rc)
	if err != nil {
		return nil, err
	}
	return &gzipReadCloser{zr: zr, rc: rc}, nil
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	if err := g.rc.Close(); err != nil {
		return err
	}
	return zerr
}
