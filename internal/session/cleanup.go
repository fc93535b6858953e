package session

import (
	"context"

	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
)

// cleanupLocked closes t and records the attempt. A close failure is
// logged and recorded but never returned: it must not mask the outcome of
// the operation that triggered it.
func (o *Orchestrator) cleanupLocked(t serial.Transport, op string) {
	err := t.Close()
	o.sess.record(CleanupRecord{Op: op, Err: err, At: o.opts.now()})
	if err != nil {
		o.opts.logger.Info("best-effort close failed", "op", op, "port", t.Name(), "err", err)
	}
}

// openLocked opens t at baud. An already open port is closed first and
// given the settle delay before reopening. The wait honours ctx.
func (o *Orchestrator) openLocked(ctx context.Context, t serial.Transport, baud int) error {
	if t.IsOpen() {
		o.cleanupLocked(t, "close before reopen")
		oplog.Emitf(o.sink, oplog.Info, "Port was open; reopening after %s.", o.opts.settleDelay)
		if err := o.opts.sleep(ctx, o.opts.settleDelay); err != nil {
			return &TransportFailureError{Op: "open", Port: t.Name(), Err: err}
		}
	}

	err := t.Open(ctx, serial.Options{BaudRate: baud, ReadTimeout: o.opts.readTimeout})
	if err != nil {
		return &TransportFailureError{Op: "open", Port: t.Name(), Err: err}
	}
	return nil
}
