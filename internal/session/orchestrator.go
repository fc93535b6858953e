package session

import (
	"sync"

	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/status"
)

// Orchestrator is the only component allowed to open or close the
// session's transport and the only one that changes its mode.
type Orchestrator struct {
	mu   sync.Mutex
	sess *SerialSession

	open    serial.Opener
	engines engine.Factory
	sink    oplog.Sink
	opts    options

	// debugExit is closed once the debug watcher has torn down the stream.
	debugExit chan struct{}
}

// New creates an Orchestrator driving sess. open acquires a transport for a
// port name and engines binds a flashing engine to an opened port.
func New(sess *SerialSession, open serial.Opener, engines engine.Factory, sink oplog.Sink, opts ...Option) *Orchestrator {
	if sess == nil {
		sess = NewSession(0)
	}
	if sink == nil {
		sink = oplog.Discard
	}
	o := &Orchestrator{
		sess:    sess,
		open:    open,
		engines: engines,
		sink:    sink,
		opts:    defaultOptions(),
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	return o
}

// ---- operator requests ----

// SelectPort acquires a transport for name. Any previously selected
// transport is closed. Selection is refused while flashing or debugging.
func (o *Orchestrator) SelectPort(name string) error {
	if name == "" {
		return &status.InvalidRequestError{Reason: "port name is required"}
	}
	if o.open == nil {
		return &TransportUnavailableError{Op: "select port"}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.mode != Idle {
		return o.rejectLocked("Cannot change port while "+o.sess.mode.String()+".",
			&BusyError{Mode: o.sess.mode, Op: "select port"})
	}
	if o.sess.transport != nil {
		o.cleanupLocked(o.sess.transport, "close previous port")
	}

	o.sess.transport = o.open(name)
	o.touchLocked()
	oplog.Emitf(o.sink, oplog.Success, "Serial port selected: %s", name)
	o.opts.logger.Info("serial port selected", "port", name)
	return nil
}

// SetBaudRate changes the rate used the next time the port is opened.
func (o *Orchestrator) SetBaudRate(rate int) error {
	if rate <= 0 {
		return &status.InvalidRequestError{Reason: "baud rate must be positive"}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.mode != Idle {
		return o.rejectLocked("Cannot change baud rate while "+o.sess.mode.String()+".",
			&BusyError{Mode: o.sess.mode, Op: "change baud rate"})
	}
	o.sess.baudRate = rate
	o.touchLocked()
	oplog.Emitf(o.sink, oplog.Info, "Baud rate set to %d", rate)
	return nil
}

// Snapshot returns the externally visible session state.
func (o *Orchestrator) Snapshot() status.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.snapshot()
}

// Cleanups returns the recorded best-effort close attempts, oldest first.
func (o *Orchestrator) Cleanups() []CleanupRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]CleanupRecord, len(o.sess.cleanups))
	copy(out, o.sess.cleanups)
	return out
}

// Close stops a running debug stream and closes the transport.
// It does not wait for a flash in progress: that flash keeps the port and
// closes it itself when it finishes.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	debugging := o.sess.mode == Debugging
	o.mu.Unlock()

	if debugging {
		if err := o.StopDebug(); err != nil {
			return err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess.transport != nil && o.sess.mode == Idle {
		o.cleanupLocked(o.sess.transport, "shutdown")
	}
	return nil
}

// ---- helpers (caller holds o.mu) ----

// rejectLocked logs a refused request and returns err unchanged.
// A rejected request leaves the session untouched.
func (o *Orchestrator) rejectLocked(text string, err error) error {
	o.sink.Emit(oplog.Warning, text)
	o.opts.logger.Debug("request rejected", "err", err)
	return err
}

func (o *Orchestrator) failLocked(err error) {
	o.sess.lastErr = err
	o.touchLocked()
}

func (o *Orchestrator) touchLocked() {
	o.sess.updatedAt = o.opts.now()
}
