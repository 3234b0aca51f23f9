// Package serialdev implements the serial device opener. Device paths
// under /dev/ resolve here; the opener hands back a live port configured
// with the requested baud rate and read timeout. Serial streams have no
// stable freshness concept, so no sniffing or caching applies.
package serialdev

import (
	"context"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/gobeaver/reskit"
)

const (
	// DefaultBaudRate matches the firmware the opener was built for.
	DefaultBaudRate = 230400

	// DefaultReadTimeout bounds each blocking read on the port.
	DefaultReadTimeout = time.Second
)

// Opener opens a serial device path.
type Opener struct {
	device      string
	baudRate    int
	readTimeout time.Duration
}

// Option customizes an Opener.
type Option func(*Opener)

// WithBaudRate overrides the default baud rate.
func WithBaudRate(baud int) Option {
	return func(o *Opener) {
		o.baudRate = baud
	}
}

// WithReadTimeout overrides the default read timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(o *Opener) {
		o.readTimeout = timeout
	}
}

// New creates a serial opener for device. The port is not opened until
// Open is called.
func New(device string, opts ...Option) *Opener {
	o := &Opener{
		device:      device,
		baudRate:    DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open returns a live connection to the device. Open errors propagate
// as-is; there is no retry for serial devices.
func (o *Opener) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	port, err := serial.Open(o.device, &serial.Mode{BaudRate: o.baudRate})
	if err != nil {
		return nil, reskit.NewResourceError("open", o.device, err)
	}
	if err := port.SetReadTimeout(o.readTimeout); err != nil {
		port.Close()
		return nil, reskit.NewResourceError("open", o.device, err)
	}
	return port, nil
}

// Filename returns the device path verbatim.
func (o *Opener) Filename(ctx context.Context) (string, error) {
	return o.device, nil
}

// BaudRate returns the configured baud rate.
func (o *Opener) BaudRate() int {
	return o.baudRate
}

// ReadTimeout returns the configured read timeout.
func (o *Opener) ReadTimeout() time.Duration {
	return o.readTimeout
}

var _ reskit.Opener = (*Opener)(nil)
