// Package file implements the local filesystem opener: it serves a path
// as a byte stream with transparent gzip decompression and derives
// identity+freshness cache keys from filesystem metadata.
package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/reskit"
)

// Opener provides file-like access to a local filesystem path.
type Opener struct {
	path     string
	detector *reskit.Detector
	logger   logrus.FieldLogger
}

// Option customizes an Opener.
type Option func(*Opener)

// WithDetector overrides the format detector.
func WithDetector(d *reskit.Detector) Option {
	return func(o *Opener) {
		o.detector = d
	}
}

// WithLogger sets the opener's logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Opener) {
		o.logger = logger
	}
}

// New creates a local file opener for path. The path is not touched until
// Open or a metadata accessor is called.
func New(path string, opts ...Option) *Opener {
	o := &Opener{
		path:     path,
		detector: reskit.DefaultDetector(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open returns a stream over the file content. The first bytes are
// sniffed against the format registry; gzip payloads are decompressed
// transparently, everything else passes through as-is.
func (o *Opener) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := os.Open(o.path)
	if err != nil {
		return nil, wrapOSError("open", o.path, err)
	}

	header := make([]byte, reskit.HeaderLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		f.Close()
		return nil, wrapOSError("open", o.path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, wrapOSError("open", o.path, err)
	}

	format := o.detector.Detect(header[:n])
	o.logger.WithFields(logrus.Fields{"resource": o.path, "format": string(format)}).
		Debug("resource format detected")

	if format == reskit.FormatGzip {
		rc, err := reskit.NewGzipReadCloser(f)
		if err != nil {
			f.Close()
			return nil, reskit.NewResourceError("open", o.path, err)
		}
		return rc, nil
	}
	return f, nil
}

// Filename returns the path itself; local files need no materialization.
func (o *Opener) Filename(ctx context.Context) (string, error) {
	return o.path, nil
}

// CacheKey combines the canonical absolute path with a stable subset of
// filesystem metadata and the modification time, joined with ";". Access
// time is deliberately excluded so that merely reading the file does not
// change its key.
func (o *Opener) CacheKey() (string, error) {
	abs, err := filepath.Abs(o.path)
	if err != nil {
		return "", wrapOSError("cachekey", o.path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	fi, err := os.Stat(o.path)
	if err != nil {
		return "", wrapOSError("cachekey", o.path, err)
	}

	parts := append([]string{abs}, statIdentity(fi)...)
	parts = append(parts, strconv.FormatInt(fi.ModTime().UnixNano(), 10))
	return strings.Join(parts, ";"), nil
}

// DataLength returns the file size in bytes.
func (o *Opener) DataLength() (int64, error) {
	fi, err := os.Stat(o.path)
	if err != nil {
		return 0, wrapOSError("stat", o.path, err)
	}
	return fi.Size(), nil
}

// fallbackIdentity is used on platforms without a richer stat structure.
func fallbackIdentity(fi os.FileInfo) []string {
	return []string{
		strconv.FormatUint(uint64(fi.Mode()), 10),
		strconv.FormatInt(fi.Size(), 10),
		strconv.FormatInt(fi.ModTime().UnixNano(), 10),
	}
}

func wrapOSError(op, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		err = reskit.ErrNotExist
	case os.IsPermission(err):
		err = reskit.ErrPermission
	}
	return &reskit.ResourceError{Op: op, Resource: path, Err: err}
}

// Interface assertions
var (
	_ reskit.Opener      = (*Opener)(nil)
	_ reskit.CanCacheKey = (*Opener)(nil)
	_ reskit.CanLength   = (*Opener)(nil)
	_ reskit.CanWatch    = (*Opener)(nil)
)
