package httpres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gobeaver/reskit"
)

// chunkSize is how much the buffer grows per network pull. The pending
// buffer holds at most a few chunks' worth as long as the consumer keeps
// reading, so even unbounded payloads stay cheap.
const chunkSize = 1024

// StreamReader presents a live, non-seekable HTTP response body as a
// sequential, line-oriented stream with seek-by-restart. It implements
// [reskit.LineReader].
//
// Every Seek to a position other than the current one discards the
// connection, re-requests the URL from byte zero, and reads the stream
// forward to the target, costing O(position) network bytes. It exists for
// consumers that read sequentially and rewind rarely.
//
// A StreamReader is owned by exactly one consumer; it is not safe for
// concurrent use.
type StreamReader struct {
	url    string
	ctx    context.Context
	client *http.Client // reopens on Seek
	logger logrus.FieldLogger

	body    io.ReadCloser
	buf     []byte
	pointer int64
	eof     bool
	closed  bool
}

// newStreamReader opens the initial connection. openClient serves the
// first request; reopenClient, with its longer header timeout, serves
// every Seek-triggered reopen. The context governs the whole lifetime of
// the stream, reopens included.
func newStreamReader(ctx context.Context, url string, openClient, reopenClient *http.Client, logger logrus.FieldLogger) (*StreamReader, error) {
	s := &StreamReader{
		url:    url,
		ctx:    ctx,
		client: reopenClient,
		logger: logger,
	}
	body, err := s.request(openClient)
	if err != nil {
		return nil, reskit.NewResourceError("stream", url, err)
	}
	s.body = body
	return s, nil
}

func (s *StreamReader) request(client *http.Client) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", reskit.ErrBadStatus, resp.Status)
	}
	return resp.Body, nil
}

// fill pulls one chunk from the connection into the pending buffer and
// records end of stream.
func (s *StreamReader) fill() error {
	chunk := make([]byte, chunkSize)
	n, err := s.body.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.eof = true
			return nil
		}
		return err
	}
	return nil
}

// ReadLine returns the next line including its trailing newline, or the
// unterminated remainder when the stream ends without one. Returns io.EOF
// once the buffer is empty and the stream is exhausted.
func (s *StreamReader) ReadLine() ([]byte, error) {
	if s.closed {
		return nil, reskit.NewResourceError("readline", s.url, reskit.ErrClosed)
	}

	for !s.eof && bytes.IndexByte(s.buf, '\n') < 0 {
		if err := s.fill(); err != nil {
			return nil, reskit.NewResourceError("readline", s.url, err)
		}
	}
	if len(s.buf) == 0 && s.eof {
		return nil, io.EOF
	}

	end := len(s.buf)
	if idx := bytes.IndexByte(s.buf, '\n'); idx >= 0 {
		end = idx + 1
	}
	line := bytes.Clone(s.buf[:end])
	s.buf = s.buf[end:]
	s.pointer += int64(end)
	return line, nil
}

// Read implements io.Reader over the buffered stream. It returns fewer
// than len(p) bytes only at end of stream, and io.EOF once drained.
func (s *StreamReader) Read(p []byte) (int, error) {
	if s.closed {
		return 0, reskit.NewResourceError("read", s.url, reskit.ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.buf) < len(p) && !s.eof {
		if err := s.fill(); err != nil {
			return 0, reskit.NewResourceError("read", s.url, err)
		}
	}
	if len(s.buf) == 0 && s.eof {
		return 0, io.EOF
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.pointer += int64(n)
	return n, nil
}

// Seek moves the logical read position. Seeking to the current position
// is a no-op; anything else discards the connection, replays the stream
// from byte zero, and reads forward to position (the transport offers no
// byte-range support here). Cost is O(position) network bytes, so avoid
// frequent or late seeks on large streams.
func (s *StreamReader) Seek(position int64) error {
	if s.closed {
		return reskit.NewResourceError("seek", s.url, reskit.ErrClosed)
	}
	if position < 0 {
		return reskit.NewResourceError("seek", s.url, fmt.Errorf("negative position %d", position))
	}
	if position == s.pointer {
		return nil
	}

	s.logger.WithFields(logrus.Fields{"resource": s.url, "position": position}).
		Debug("reopening stream for seek")

	s.body.Close()
	s.buf = nil
	s.eof = false
	s.pointer = 0

	body, err := s.request(s.client)
	if err != nil {
		return reskit.NewResourceError("seek", s.url, err)
	}
	s.body = body

	for s.pointer < position {
		if len(s.buf) == 0 {
			if s.eof {
				break
			}
			if err := s.fill(); err != nil {
				return reskit.NewResourceError("seek", s.url, err)
			}
			continue
		}
		skip := int64(len(s.buf))
		if skip > position-s.pointer {
			skip = position - s.pointer
		}
		s.buf = s.buf[skip:]
		s.pointer += skip
	}
	return nil
}

// Tell returns the current logical read position.
func (s *StreamReader) Tell() int64 {
	return s.pointer
}

// Close releases the underlying connection. The reader is unusable
// afterwards.
func (s *StreamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

var _ reskit.LineReader = (*StreamReader)(nil)
