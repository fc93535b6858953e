package session

import (
	"context"
	"time"

	"github.com/byronin/esp32-webflasher/internal/console"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
)

// StartDebug opens the port and starts streaming its output to the sink
// in the background. ctx bounds only the open; the stream runs until
// StopDebug, Close, end of stream or a read failure.
func (o *Orchestrator) StartDebug(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.transport == nil {
		return o.rejectLocked("No serial port selected.", &TransportUnavailableError{Op: "start debug"})
	}
	switch o.sess.mode {
	case Debugging:
		return o.rejectLocked("Debug serial already running.", &BusyError{Mode: Debugging, Op: "start debug"})
	case Flashing:
		return o.rejectLocked("Cannot start debug serial while flashing.", &BusyError{Mode: Flashing, Op: "start debug"})
	}

	t := o.sess.transport
	baud := o.sess.baudRate

	if err := o.openLocked(ctx, t, baud); err != nil {
		o.sink.Emit(oplog.Failure, "Debug error: "+err.Error())
		o.failLocked(err)
		o.cleanupLocked(t, "close after failed open")
		return err
	}

	r := console.NewReader(t, o.opts.encoding, o.sink)
	exit := make(chan struct{})

	o.sess.reader = r
	o.sess.mode = Debugging
	o.debugExit = exit
	o.touchLocked()

	oplog.Emitf(o.sink, oplog.Success, "Debug serial started at %d baud.", baud)
	o.opts.logger.Info("debug stream started", "port", t.Name(), "baud", baud)

	go o.watchDebug(r, t, exit)
	return nil
}

// StopDebug stops a running debug stream and waits until the port is
// closed and the session is Idle again. Without a running stream it only
// logs and returns nil, so it is safe to call repeatedly.
func (o *Orchestrator) StopDebug() error {
	o.mu.Lock()
	if o.sess.mode != Debugging || o.sess.reader == nil {
		o.mu.Unlock()
		o.sink.Emit(oplog.Info, "Debug serial not running.")
		return nil
	}
	r := o.sess.reader
	t := o.sess.transport
	exit := o.debugExit
	o.mu.Unlock()

	r.Cancel()

	select {
	case <-exit:
		return nil
	case <-time.After(o.opts.stopGrace):
	}

	// The reader is stuck in a read that ignores its timeout. Closing the
	// port releases it; the reader reports that as a cancellation.
	o.mu.Lock()
	o.teardownLocked(r, t, "release blocked read")
	o.mu.Unlock()
	<-exit
	return nil
}

// teardownLocked closes t and returns the session to Idle in one step, but
// only while r still owns the session.
func (o *Orchestrator) teardownLocked(r *console.Reader, t serial.Transport, op string) {
	if o.sess.reader != r {
		return
	}
	o.cleanupLocked(t, op)
	o.sess.reader = nil
	o.sess.mode = Idle
	o.touchLocked()
}

// watchDebug runs r and tears the stream down when it ends for any reason.
func (o *Orchestrator) watchDebug(r *console.Reader, t serial.Transport, exit chan struct{}) {
	defer close(exit)

	res := r.Run(context.Background())

	o.mu.Lock()
	defer o.mu.Unlock()

	// A no-op when StopDebug already tore the stream down.
	o.teardownLocked(r, t, "close after debug")

	switch res.Reason {
	case console.EndOfStream:
		o.sink.Emit(oplog.Info, "Debug stream ended.")
	case console.Failed:
		err := &TransportFailureError{Op: "read", Port: t.Name(), Err: res.Err}
		o.failLocked(err)
		o.sink.Emit(oplog.Failure, "Debug error: "+res.Err.Error())
		o.opts.logger.Error("debug stream failed", "port", t.Name(), "err", res.Err)
	default:
		o.sink.Emit(oplog.Success, "Debug serial stopped.")
	}
	o.opts.logger.Info("debug stream ended", "port", t.Name(), "reason", res.Reason)
}
