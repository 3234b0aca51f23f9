package reskit

import (
	"context"
	"io"
)

// ============================================================================
// Core Interfaces (Interface Segregation)
// ============================================================================

// Opener turns a resource identifier into a byte stream and metadata.
// Every backend implements this minimal surface; richer capabilities are
// exposed through the optional interfaces below.
type Opener interface {
	// Open returns a stream over the resource content. Backends that
	// understand compressed payloads decompress transparently.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Filename returns a local path for the resource. For network
	// resources this materializes the payload into the download cache
	// first, so it may block on a full download.
	Filename(ctx context.Context) (string, error)
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================
// Backends expose optional capabilities through narrow interfaces.
// Use type assertion to check for support:
//
//	if ck, ok := op.(reskit.CanCacheKey); ok {
//	    key, err := ck.CacheKey()
//	}

// CanCacheKey indicates the opener derives a stable identity+freshness key
// for its resource. Two openers for the same logical resource at the same
// freshness state yield the same key; any freshness change yields a new
// one. Serial devices have no freshness concept and do not implement this.
type CanCacheKey interface {
	CacheKey() (string, error)
}

// CanLength indicates the opener knows the resource size in bytes up
// front (file size, or a server-reported Content-Length).
type CanLength interface {
	DataLength() (int64, error)
}

// CanWatch indicates the opener can signal when the underlying resource
// changes, invalidating previously derived cache keys.
type CanWatch interface {
	// Watch returns a token that signals when the resource is modified,
	// renamed, or removed. The watch stops when ctx is cancelled.
	Watch(ctx context.Context) (ChangeToken, error)
}

// ============================================================================
// Line-Oriented Stream Interface
// ============================================================================

// LineReader is the narrow pseudo-file surface offered by the lazy HTTP
// stream reader: sequential byte reads, line-oriented reads, and
// seek-by-restart. It deliberately does not mimic io.Seeker: every
// non-trivial Seek costs O(position) bytes re-read over the network, and
// the interface keeps that limitation visible to callers.
type LineReader interface {
	io.ReadCloser

	// ReadLine returns the next line including its trailing newline, or
	// the unterminated remainder at end of stream. Returns io.EOF once
	// the stream is drained.
	ReadLine() ([]byte, error)

	// Seek moves the logical read position. Any position other than the
	// current one discards the connection and replays the stream from
	// byte zero, so callers must avoid frequent or late seeks.
	Seek(position int64) error

	// Tell reports the current logical read position.
	Tell() int64
}

// ============================================================================
// Change Notification Interface (ChangeToken Pattern)
// ============================================================================

// ChangeToken represents a change notification token. Consumers either
// poll HasChanged or register a callback; check ActiveChangeCallbacks to
// know which approach the producer supports efficiently.
type ChangeToken interface {
	// HasChanged returns true once a change has occurred. Tokens are
	// single-use: once true, it stays true.
	HasChanged() bool

	// ActiveChangeCallbacks indicates whether the token proactively
	// raises callbacks. If false, consumers should poll HasChanged.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers a callback invoked when a change
	// occurs. Returns a function to unregister it.
	RegisterChangeCallback(callback func()) (unregister func())
}
