// Package reskit provides uniform, file-like access to heterogeneous
// resources named by a single identifier string: local filesystem paths,
// HTTP(S) URLs, and serial devices. Callers ask a [Router] for either a
// materialized local path or the resource's content without knowing which
// backend served it.
//
// ResKit follows a small-interface design: every backend implements
// [Opener], while optional capabilities ([CanCacheKey], [CanLength],
// [CanWatch]) are discovered with type assertions. This keeps the common
// surface minimal and lets each backend expose only what it can honestly
// support (a serial device has no cache key, a live HTTP stream has no
// stable length).
//
// # Backends
//
// Three openers ship with ResKit, each in its own subpackage:
//
//   - Local files (github.com/gobeaver/reskit/opener/file)
//   - HTTP and HTTPS URLs (github.com/gobeaver/reskit/opener/httpres)
//   - Serial devices (github.com/gobeaver/reskit/opener/serialdev)
//
// Importing an opener package registers it with the router's dispatch
// table; import all three (blank imports are fine) to get the full
// identifier syntax: "http://" and "https://" resolve over the network,
// "/dev/" opens a serial port, and anything else is treated as a
// filesystem path.
//
// # Basic Usage
//
//	import (
//	    "github.com/gobeaver/reskit"
//	    _ "github.com/gobeaver/reskit/opener/file"
//	    _ "github.com/gobeaver/reskit/opener/httpres"
//	    _ "github.com/gobeaver/reskit/opener/serialdev"
//	)
//
//	router, err := reskit.NewRouter(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	content, err := router.Content(ctx, "https://example.com/ammo.tar.gz")
//	path, err := router.Filename(ctx, "./local/data.gz")
//
// # Format Detection and Caching
//
// Gzip payloads are decompressed transparently: both the file and HTTP
// openers sniff a short byte prefix against a registered signature table
// ([Detector]) before deciding how to present the content. Downloaded
// payloads are cached on disk under names derived from an
// identity-and-freshness key ([PayloadCache]), so refetching an unchanged
// URL reuses the cached file instead of hitting the network again.
//
// Very large non-gzip network payloads are never written to disk at all:
// the HTTP opener hands back a lazy stream reader that supports
// sequential reads, line-oriented reads, and seek-by-restart (see
// [LineReader] and the httpres package).
package reskit
