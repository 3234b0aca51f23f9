package reskit

import (
	"bytes"
	"sync"
)

// Format names a detected payload format.
type Format string

const (
	FormatGzip    Format = "gzip"
	FormatTar     Format = "tar"
	FormatUnknown Format = ""
)

// HeaderLen is the number of leading bytes an opener should feed to
// [Detector.Detect]; it covers the deepest registered built-in signature
// (tar magic at offset 257) with room to spare.
const HeaderLen = 300

// Signature is a fixed byte pattern expected at a fixed offset from the
// start of a payload.
type Signature struct {
	Format  Format
	Offset  int
	Pattern []byte
}

// Matches reports whether the signature is present in header.
func (s Signature) Matches(header []byte) bool {
	end := s.Offset + len(s.Pattern)
	if len(header) < end {
		return false
	}
	return bytes.Equal(header[s.Offset:end], s.Pattern)
}

// Detector classifies payloads by matching byte signatures against a
// short header prefix. Signatures are checked in registration order and
// the first match wins; the built-in gzip and tar signatures cannot
// overlap, but callers registering additional formats should order them
// most-specific first.
type Detector struct {
	mu         sync.RWMutex
	signatures []Signature
}

// NewDetector returns a detector preloaded with the built-in gzip and tar
// signatures.
func NewDetector() *Detector {
	d := &Detector{}
	d.Register(Signature{Format: FormatGzip, Offset: 0, Pattern: []byte{0x1f, 0x8b}})
	d.Register(Signature{Format: FormatTar, Offset: 257, Pattern: []byte("ustar\x00")})
	return d
}

// Register appends a signature to the detection order.
func (d *Detector) Register(sig Signature) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signatures = append(d.signatures, Signature{
		Format:  sig.Format,
		Offset:  sig.Offset,
		Pattern: bytes.Clone(sig.Pattern),
	})
}

// Detect returns the format of the first matching signature, or
// FormatUnknown. Unrecognized content is never an error: unknown payloads
// pass through openers unmodified.
func (d *Detector) Detect(header []byte) Format {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sig := range d.signatures {
		if sig.Matches(header) {
			return sig.Format
		}
	}
	return FormatUnknown
}

var defaultDetector = NewDetector()

// DefaultDetector returns the process-wide detector shared by the built-in
// openers. Formats registered on it are visible to all of them.
func DefaultDetector() *Detector {
	return defaultDetector
}
