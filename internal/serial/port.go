package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	goserial "github.com/goburrow/serial"
)

// DefaultReadTimeout bounds a single Read when Options.ReadTimeout is zero.
const DefaultReadTimeout = 100 * time.Millisecond

// Port implements Transport on a local serial device.
// The line is 8N1; only the baud rate and read timeout vary.
type Port struct {
	name string
	dial func(*goserial.Config) (io.ReadWriteCloser, error)

	mu sync.Mutex
	rw io.ReadWriteCloser // nil while closed
}

// NewPort returns a closed handle for the named device.
func NewPort(name string) *Port {
	return &Port{
		name: name,
		dial: func(c *goserial.Config) (io.ReadWriteCloser, error) {
			return goserial.Open(c)
		},
	}
}

// Name returns the device path.
func (p *Port) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Open opens the device at opts.BaudRate.
func (p *Port) Open(ctx context.Context, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.BaudRate <= 0 {
		return fmt.Errorf("serial: invalid baud rate %d", opts.BaudRate)
	}
	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rw != nil {
		return ErrAlreadyOpen
	}

	rw, err := p.dial(&goserial.Config{
		Address:  p.name,
		BaudRate: opts.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	})
	if err != nil {
		return fmt.Errorf("serial: open %s: %w", p.name, err)
	}

	p.rw = rw
	return nil
}

// Close closes the device. Closing a closed port is a no-op.
func (p *Port) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	rw := p.rw
	p.rw = nil
	p.mu.Unlock()

	if rw == nil {
		return nil
	}
	return rw.Close()
}

// IsOpen reports whether the device is open.
func (p *Port) IsOpen() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rw != nil
}

// Read reads available bytes. It returns ErrReadTimeout when nothing
// arrived within the read timeout.
func (p *Port) Read(b []byte) (int, error) {
	rw := p.current()
	if rw == nil {
		return 0, ErrNotOpen
	}
	n, err := rw.Read(b)
	if errors.Is(err, goserial.ErrTimeout) {
		return n, ErrReadTimeout
	}
	return n, err
}

// Write writes b to the device.
func (p *Port) Write(b []byte) (int, error) {
	rw := p.current()
	if rw == nil {
		return 0, ErrNotOpen
	}
	return rw.Write(b)
}

func (p *Port) current() io.ReadWriteCloser {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rw
}
