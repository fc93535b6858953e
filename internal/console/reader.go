// Package console streams a device's debug output as text.
//
// A Reader consumes an already opened source, decodes the bytes and
// delivers text chunks to an operator log sink as they arrive. Chunks are
// not line-buffered: one chunk may hold several lines or part of one.
package console

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding"

	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
)

// DefaultBufferSize is the maximum number of bytes read per chunk.
const DefaultBufferSize = 1024

var errAlreadyRun = errors.New("console: reader already started")

// Reader is a single-use debug stream consumer. It only reads from its
// source; it never writes and never closes it.
type Reader struct {
	src     io.Reader
	dec     *decoder
	sink    oplog.Sink
	bufSize int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool

	mu     sync.Mutex
	result Result
}

// NewReader creates a Reader over src. A nil encoding means UTF-8.
func NewReader(src io.Reader, enc encoding.Encoding, sink oplog.Sink) *Reader {
	if sink == nil {
		sink = oplog.Discard
	}
	return &Reader{
		src:     src,
		dec:     newDecoder(enc),
		sink:    sink,
		bufSize: DefaultBufferSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run reads until the source ends, Cancel is called, ctx is done or a
// read fails. It blocks; run it in its own goroutine. Run may be called
// once; later calls fail immediately.
func (r *Reader) Run(ctx context.Context) Result {
	if !r.started.CompareAndSwap(false, true) {
		return Result{Reason: Failed, Err: errAlreadyRun}
	}
	defer close(r.done)

	res := r.loop(ctx)

	r.mu.Lock()
	r.result = res
	r.mu.Unlock()
	return res
}

func (r *Reader) loop(ctx context.Context) Result {
	buf := make([]byte, r.bufSize)

	for {
		if r.stopped(ctx) {
			r.dec.release()
			return Result{Reason: Cancelled}
		}

		n, err := r.src.Read(buf)
		if n > 0 {
			text, derr := r.dec.decode(buf[:n], false)
			r.deliver(text)
			if derr != nil {
				r.dec.release()
				return Result{Reason: Failed, Err: derr}
			}
		}

		switch {
		case err == nil:
			continue

		case errors.Is(err, io.EOF):
			text, derr := r.dec.flush()
			r.deliver(text)
			r.dec.release()
			if derr != nil {
				return Result{Reason: Failed, Err: derr}
			}
			return Result{Reason: EndOfStream}

		case isTimeout(err):
			continue

		default:
			r.dec.release()
			// A read that fails after cancellation is the expected way a
			// blocked read is released.
			if r.stopped(ctx) {
				return Result{Reason: Cancelled}
			}
			return Result{Reason: Failed, Err: err}
		}
	}
}

// Cancel asks Run to stop. It is idempotent and safe to call before Run,
// during Run or after Run has returned.
func (r *Reader) Cancel() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed when Run returns.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Result returns the outcome of Run; the zero Result while still running.
func (r *Reader) Result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

func (r *Reader) stopped(ctx context.Context) bool {
	select {
	case <-r.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (r *Reader) deliver(text string) {
	if text != "" {
		r.sink.Emit(oplog.Data, text)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, serial.ErrReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
