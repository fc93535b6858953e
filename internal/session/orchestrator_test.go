package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/status"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

// ---- port selection ----

func TestSelectPort(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.orch.SelectPort("/dev/ttyACM0"))
	snap := h.orch.Snapshot()
	assert.Equal(t, "/dev/ttyACM0", snap.Port)
	assert.Equal(t, status.ModeIdle, snap.Mode)
	assert.False(t, snap.PortOpen)
	assert.NotEmpty(t, snap.SessionID)
	assert.Contains(t, texts(h.journal), "Serial port selected: /dev/ttyACM0")

	err := h.orch.SelectPort("")
	assert.Equal(t, status.CodeInvalidRequest, status.CodeOf(err))
}

func TestSetBaudRate(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SetBaudRate(921600))
	assert.Equal(t, 921600, h.orch.Snapshot().BaudRate)

	assert.Error(t, h.orch.SetBaudRate(0))
	assert.Equal(t, 921600, h.orch.Snapshot().BaudRate)
}

// ---- flashing ----

func TestStartFlash_Success(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.SetBaudRate(460800))

	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))

	assert.Equal(t, []string{engine.StageSync, engine.StageErase, engine.StageProgram}, h.eng.Calls())
	assert.Equal(t, engine.PortInfo{Name: "/dev/ttyUSB0", BaudRate: 460800}, h.eng.portInfo)

	open, opens, closes := h.port.stats()
	assert.False(t, open, "port is closed after flashing")
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Equal(t, 460800, h.port.lastBaud)

	snap := h.orch.Snapshot()
	assert.Equal(t, status.ModeIdle, snap.Mode)
	assert.Equal(t, 100, snap.Percent)
	assert.Zero(t, snap.LastErrorCode)

	lines := texts(h.journal)
	assert.Contains(t, lines, "Opening serial port at 460800 baud...")
	assert.Contains(t, lines, "Erasing flash...")
	assert.Contains(t, lines, "Flash complete!")
	assert.Contains(t, lines, "Segment 0 @0x1000: 50% (7/14 bytes)")
}

func TestStartFlash_StageOrderInLog(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))

	idx := func(text string) int {
		for i, l := range texts(h.journal) {
			if l == text {
				return i
			}
		}
		return -1
	}
	assert.Less(t, idx("Synced with ESP."), idx("Erasing flash..."))
	assert.Less(t, idx("Flash erased."), idx("Flash complete!"))
}

func TestStartFlash_SkipsEraseWhenNotRequested(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	job := testJob()
	job.EraseAll = false
	require.NoError(t, h.orch.StartFlash(context.Background(), job))
	assert.Equal(t, []string{engine.StageSync, engine.StageProgram}, h.eng.Calls())
}

func TestStartFlash_EraseFailureStopsBeforeProgramming(t *testing.T) {
	h := newHarness()
	h.eng.eraseErr = errors.New("chip did not respond")
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	err := h.orch.StartFlash(context.Background(), testJob())

	var ef *EngineFailureError
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, engine.StageErase, ef.Stage)
	assert.Equal(t, []string{engine.StageSync, engine.StageErase}, h.eng.Calls())

	open, _, closes := h.port.stats()
	assert.False(t, open)
	assert.Equal(t, 1, closes)

	snap := h.orch.Snapshot()
	assert.Equal(t, status.ModeIdle, snap.Mode)
	assert.Equal(t, status.CodeEngineFailure, snap.LastErrorCode)

	last := h.journal.Since(0)
	var failures int
	for _, e := range last {
		if e.Kind == oplog.Failure {
			failures++
			assert.Contains(t, e.Text, "chip did not respond")
		}
	}
	assert.Equal(t, 1, failures)
	assert.NotContains(t, texts(h.journal), "Flash complete!")
}

func TestStartFlash_SyncRetries(t *testing.T) {
	h := newHarness(WithSyncRetries(3))
	h.eng.syncErrs = []error{errors.New("no reply"), errors.New("no reply")}
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))
	assert.Equal(t, []string{
		engine.StageSync, engine.StageSync, engine.StageSync,
		engine.StageErase, engine.StageProgram,
	}, h.eng.Calls())
	assert.Contains(t, texts(h.journal), "Sync attempt 1/3 failed: no reply")
}

func TestStartFlash_SyncExhausted(t *testing.T) {
	h := newHarness(WithSyncRetries(2))
	h.eng.syncErrs = []error{errors.New("a"), errors.New("b"), errors.New("c")}
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	err := h.orch.StartFlash(context.Background(), testJob())
	var ef *EngineFailureError
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, engine.StageSync, ef.Stage)
	assert.Equal(t, []string{engine.StageSync, engine.StageSync}, h.eng.Calls())
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

func TestStartFlash_Guards(t *testing.T) {
	h := newHarness()

	err := h.orch.StartFlash(context.Background(), testJob())
	assert.Equal(t, status.CodeTransportUnavailable, status.CodeOf(err))
	assert.Contains(t, texts(h.journal), "No serial port selected.")

	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	err = h.orch.StartFlash(context.Background(), engine.Job{})
	assert.Equal(t, status.CodeInvalidRequest, status.CodeOf(err))
	assert.Contains(t, texts(h.journal), "No firmware loaded.")

	assert.Empty(t, h.eng.Calls())
	_, opens, _ := h.port.stats()
	assert.Zero(t, opens, "rejected requests never touch the port")
	assert.Zero(t, h.orch.Snapshot().LastErrorCode)
}

func TestStartFlash_OpenFailure(t *testing.T) {
	h := newHarness()
	h.port.openErr = errors.New("permission denied")
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	err := h.orch.StartFlash(context.Background(), testJob())
	assert.Equal(t, status.CodeTransportFailure, status.CodeOf(err))
	assert.Empty(t, h.eng.Calls())
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

func TestStartFlash_CloseFailureDoesNotMaskResult(t *testing.T) {
	h := newHarness()
	h.port.closeErr = errors.New("close failed")
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))

	h.eng.writeErr = errors.New("write timeout")
	err := h.orch.StartFlash(context.Background(), testJob())
	var ef *EngineFailureError
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, engine.StageProgram, ef.Stage)

	var recorded int
	for _, c := range h.orch.Cleanups() {
		if c.Err != nil {
			recorded++
		}
	}
	assert.GreaterOrEqual(t, recorded, 2)
}

func TestStartFlash_ReopensAlreadyOpenPortAfterSettle(t *testing.T) {
	h := newHarness(WithSettleDelay(300 * time.Millisecond))
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	h.port.open = true

	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, h.sleeps)
	_, opens, closes := h.port.stats()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, closes)
}

func TestStartFlash_SettleRespectsContext(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	h.port.open = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.orch.StartFlash(ctx, testJob())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.eng.Calls())
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

func TestStartFlash_MutualExclusion(t *testing.T) {
	h := newHarness()
	h.eng.block = make(chan struct{})
	h.eng.started = make(chan struct{})
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	var wg sync.WaitGroup
	wg.Add(1)
	var first error
	go func() {
		defer wg.Done()
		first = h.orch.StartFlash(context.Background(), testJob())
	}()
	<-h.eng.started

	snap := h.orch.Snapshot()
	assert.Equal(t, status.ModeFlashing, snap.Mode)
	assert.True(t, snap.PortOpen)

	err := h.orch.StartFlash(context.Background(), testJob())
	var busy *BusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, Flashing, busy.Mode)

	err = h.orch.StartDebug(context.Background())
	assert.Equal(t, status.CodeBusy, status.CodeOf(err))

	assert.Equal(t, status.CodeBusy, status.CodeOf(h.orch.SetBaudRate(9600)))
	assert.Equal(t, status.CodeBusy, status.CodeOf(h.orch.SelectPort("/dev/ttyUSB1")))

	close(h.eng.block)
	wg.Wait()
	require.NoError(t, first)
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

// ---- debug streaming ----

func TestDebug_StreamAndStop(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartDebug(context.Background()))

	snap := h.orch.Snapshot()
	assert.Equal(t, status.ModeDebugging, snap.Mode)
	assert.True(t, snap.PortOpen)

	h.port.reads <- []byte("rst:0x1 (POWERON_RESET)\n")
	waitFor(t, func() bool {
		for _, e := range h.journal.Since(0) {
			if e.Kind == oplog.Data {
				return true
			}
		}
		return false
	})

	require.NoError(t, h.orch.StopDebug())
	snap = h.orch.Snapshot()
	assert.Equal(t, status.ModeIdle, snap.Mode)
	assert.False(t, snap.PortOpen)
	assert.Contains(t, texts(h.journal), "Debug serial stopped.")

	// a second stop is a logged no-op
	require.NoError(t, h.orch.StopDebug())
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
	assert.Contains(t, texts(h.journal), "Debug serial not running.")
}

func TestDebug_AlreadyRunning(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartDebug(context.Background()))
	defer h.orch.StopDebug()

	err := h.orch.StartDebug(context.Background())
	assert.Equal(t, status.CodeBusy, status.CodeOf(err))
	assert.Contains(t, texts(h.journal), "Debug serial already running.")

	err = h.orch.StartFlash(context.Background(), testJob())
	assert.Equal(t, status.CodeBusy, status.CodeOf(err))
	assert.Empty(t, h.eng.Calls())
}

func TestDebug_NoPort(t *testing.T) {
	h := newHarness()
	err := h.orch.StartDebug(context.Background())
	assert.Equal(t, status.CodeTransportUnavailable, status.CodeOf(err))
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

func TestDebug_EndOfStreamReturnsToIdle(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartDebug(context.Background()))

	close(h.port.reads)
	waitFor(t, func() bool { return h.orch.Snapshot().Mode == status.ModeIdle })
	assert.False(t, h.orch.Snapshot().PortOpen)
	assert.Contains(t, texts(h.journal), "Debug stream ended.")
}

func TestDebug_ReadFailureReturnsToIdle(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartDebug(context.Background()))

	h.port.setReadErr(errors.New("device unplugged"))
	waitFor(t, func() bool { return h.orch.Snapshot().Mode == status.ModeIdle })

	snap := h.orch.Snapshot()
	assert.False(t, snap.PortOpen)
	assert.Equal(t, status.CodeTransportFailure, snap.LastErrorCode)
	assert.Contains(t, snap.LastError, "device unplugged")
}

func TestDebug_FlashAfterStop(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartDebug(context.Background()))
	require.NoError(t, h.orch.StopDebug())

	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))
	assert.Empty(t, h.sleeps, "stopped stream leaves the port closed, no reopen wait")
}

func TestClose(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, h.orch.StartDebug(context.Background()))

	require.NoError(t, h.orch.Close())
	open, _, _ := h.port.stats()
	assert.False(t, open)
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

func TestClose_DuringFlashLeavesPortToFlash(t *testing.T) {
	h := newHarness()
	h.eng.block = make(chan struct{})
	h.eng.started = make(chan struct{})
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	flashed := make(chan error, 1)
	go func() { flashed <- h.orch.StartFlash(context.Background(), testJob()) }()
	<-h.eng.started

	require.NoError(t, h.orch.Close())
	open, _, _ := h.port.stats()
	assert.True(t, open, "Close must not pull the port from under a flash")
	assert.Equal(t, status.ModeFlashing, h.orch.Snapshot().Mode)

	close(h.eng.block)
	require.NoError(t, <-flashed)
	open, _, _ = h.port.stats()
	assert.False(t, open)
	assert.Equal(t, status.ModeIdle, h.orch.Snapshot().Mode)
}

func TestSessionConsistency(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.orch.SelectPort("/dev/ttyUSB0"))

	check := func() {
		h.orch.mu.Lock()
		defer h.orch.mu.Unlock()
		assert.True(t, h.orch.sess.consistent(), "mode=%s open=%v", h.orch.sess.mode, h.orch.sess.portOpen())
	}

	check()
	require.NoError(t, h.orch.StartDebug(context.Background()))
	check()
	require.NoError(t, h.orch.StopDebug())
	check()
	require.NoError(t, h.orch.StartFlash(context.Background(), testJob()))
	check()
}

func TestStopDebug_ClosesPortWhenReadIgnoresCancel(t *testing.T) {
	port := newBlockingTransport("/dev/ttyUSB0")
	journal := oplog.NewJournal(0)
	orch := New(NewSession(115200), func(string) serial.Transport { return port },
		(&fakeEngine{}).factory(), journal, WithStopGrace(20*time.Millisecond))
	require.NoError(t, orch.SelectPort("/dev/ttyUSB0"))
	require.NoError(t, orch.StartDebug(context.Background()))
	<-port.reading

	done := make(chan struct{})
	var broken []string
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			orch.mu.Lock()
			if !orch.sess.consistent() {
				broken = append(broken, orch.sess.mode.String())
			}
			orch.mu.Unlock()
			select {
			case <-done:
				return
			default:
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	require.NoError(t, orch.StopDebug())
	close(done)
	wg.Wait()

	assert.Empty(t, broken, "session observed inconsistent during stop")
	assert.False(t, port.IsOpen())
	snap := orch.Snapshot()
	assert.Equal(t, status.ModeIdle, snap.Mode)
	assert.False(t, snap.PortOpen)
	assert.Contains(t, texts(journal), "Debug serial stopped.")

	var ops []string
	for _, c := range orch.Cleanups() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"release blocked read"}, ops)
}
