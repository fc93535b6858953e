// Package serial defines the serial transport contract used by a flashing
// session and provides an implementation on top of github.com/goburrow/serial.
package serial

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrReadTimeout is returned by Read when no byte arrived within the
	// read timeout. It is not fatal; the caller may read again.
	ErrReadTimeout = errors.New("serial: read timeout")

	// ErrNotOpen is returned by Read/Write on a closed transport.
	ErrNotOpen = errors.New("serial: port not open")

	// ErrAlreadyOpen is returned by Open on an open transport.
	ErrAlreadyOpen = errors.New("serial: port already open")
)

// StandardBaudRates are the rates offered to operators.
var StandardBaudRates = []int{9600, 57600, 115200, 230400, 460800, 921600}

// Options are applied when a transport is opened.
type Options struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Transport is one serial line. A Transport starts closed; Open and Close
// may be called repeatedly. Only the session that owns a Transport may call
// any of its methods.
type Transport interface {
	io.ReadWriter

	// Name identifies the device (e.g. /dev/ttyUSB0, COM3).
	Name() string

	// Open opens the line. It fails with ErrAlreadyOpen when already open.
	Open(ctx context.Context, opts Options) error

	// Close closes the line. Closing a closed transport is a no-op.
	Close() error

	// IsOpen reports whether the line is currently readable/writable.
	IsOpen() bool
}

// Opener acquires a handle for a named port without opening it.
type Opener func(name string) Transport
