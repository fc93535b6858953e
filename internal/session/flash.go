package session

import (
	"context"
	"fmt"

	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/status"
)

// StartFlash programs job onto the device and blocks until the flash has
// finished or failed. The port is opened for the flash and closed again
// afterwards regardless of the outcome, leaving the session Idle.
//
// ctx is checked between stages; a stage that has started runs to
// completion or to its own failure.
func (o *Orchestrator) StartFlash(ctx context.Context, job engine.Job) error {
	t, baud, err := o.beginFlash(ctx, job)
	if err != nil {
		return err
	}

	ferr := o.runStages(ctx, enginePort{t: t, baud: baud}, job.WithDefaults())

	o.mu.Lock()
	defer o.mu.Unlock()

	if ferr != nil {
		o.sink.Emit(oplog.Failure, "Error: "+ferr.Error())
		o.opts.logger.Error("flash failed", "port", t.Name(), "err", ferr)
		o.failLocked(ferr)
	}
	o.cleanupLocked(t, "close after flash")
	o.sess.mode = Idle
	o.touchLocked()
	return ferr
}

// beginFlash checks the guards, reserves Flashing and opens the port.
// On return without error the session is Flashing with an open port.
func (o *Orchestrator) beginFlash(ctx context.Context, job engine.Job) (t serial.Transport, baud int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.transport == nil {
		return nil, 0, o.rejectLocked("No serial port selected.", &TransportUnavailableError{Op: "flash"})
	}
	if verr := job.Validate(); verr != nil {
		return nil, 0, o.rejectLocked("No firmware loaded.", &status.InvalidRequestError{Reason: verr.Error()})
	}
	if o.sess.mode != Idle {
		return nil, 0, o.rejectLocked("Cannot flash while "+o.sess.mode.String()+".",
			&BusyError{Mode: o.sess.mode, Op: "flash"})
	}
	if o.engines == nil {
		return nil, 0, o.rejectLocked("No flashing engine configured.",
			&EngineFailureError{Stage: engine.StageSync, Err: errNoEngine})
	}

	t = o.sess.transport
	baud = o.sess.baudRate

	oplog.Emitf(o.sink, oplog.Info, "Opening serial port at %d baud...", baud)
	if oerr := o.openLocked(ctx, t, baud); oerr != nil {
		o.sink.Emit(oplog.Failure, "Error: "+oerr.Error())
		o.failLocked(oerr)
		o.cleanupLocked(t, "close after failed open")
		return nil, 0, oerr
	}

	o.sess.mode = Flashing
	o.sess.percent = 0
	o.touchLocked()
	o.opts.logger.Info("flash started", "port", t.Name(), "baud", baud, "bytes", job.TotalBytes())
	return t, baud, nil
}

// runStages drives sync, the optional erase and programming in order.
// Each stage is logged as it completes or fails; a failure stops the run.
func (o *Orchestrator) runStages(ctx context.Context, p enginePort, job engine.Job) error {
	eng := o.engines(p)

	if err := o.syncStage(ctx, eng); err != nil {
		return err
	}
	o.sink.Emit(oplog.Success, "Synced with ESP.")

	if job.EraseAll {
		if err := ctx.Err(); err != nil {
			return &EngineFailureError{Stage: engine.StageErase, Err: err}
		}
		o.sink.Emit(oplog.Info, "Erasing flash...")
		if err := eng.EraseFlash(ctx); err != nil {
			return &EngineFailureError{Stage: engine.StageErase, Err: err}
		}
		o.sink.Emit(oplog.Success, "Flash erased.")
	}

	if err := ctx.Err(); err != nil {
		return &EngineFailureError{Stage: engine.StageProgram, Err: err}
	}
	oplog.Emitf(o.sink, oplog.Info, "Flashing firmware (%d segment(s), %s)...",
		len(job.Segments), FormatMB(job.TotalBytes()))

	err := eng.WriteFlash(ctx, job, func(pr engine.Progress) {
		o.progress(job, pr)
	})
	if err != nil {
		return &EngineFailureError{Stage: engine.StageProgram, Err: err}
	}

	o.sink.Emit(oplog.Success, "Flash complete!")
	return nil
}

func (o *Orchestrator) syncStage(ctx context.Context, eng engine.Engine) error {
	attempts := o.opts.syncRetries
	if attempts < 1 {
		attempts = 1
	}

	o.sink.Emit(oplog.Info, "Syncing with ESP...")
	var err error
	for i := 1; i <= attempts; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return &EngineFailureError{Stage: engine.StageSync, Err: cerr}
		}
		if err = eng.Sync(ctx); err == nil {
			return nil
		}
		if i < attempts {
			oplog.Emitf(o.sink, oplog.Warning, "Sync attempt %d/%d failed: %v", i, attempts, err)
		}
	}
	return &EngineFailureError{Stage: engine.StageSync, Err: err}
}

func (o *Orchestrator) progress(job engine.Job, pr engine.Progress) {
	pct := pr.Percent()

	o.mu.Lock()
	o.sess.percent = pct
	o.touchLocked()
	o.mu.Unlock()

	addr := uint32(0)
	if pr.Index >= 0 && pr.Index < len(job.Segments) {
		addr = job.Segments[pr.Index].Address
	}
	oplog.Emitf(o.sink, oplog.Progress, "Segment %d @0x%x: %d%% (%d/%d bytes)",
		pr.Index, addr, pct, pr.Written, pr.Total)
}

// FormatMB renders a byte count in megabytes with two decimals.
func FormatMB(n int) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
