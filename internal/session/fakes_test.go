package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
)

// ---- fake transport ----

type fakeTransport struct {
	name string

	mu       sync.Mutex
	open     bool
	opens    int
	closes   int
	lastBaud int
	openErr  error
	closeErr error
	reads    chan []byte // debug data; closed channel means EOF
	readErr  error
	written  []byte
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, reads: make(chan []byte, 16)}
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Open(ctx context.Context, opts serial.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return serial.ErrAlreadyOpen
	}
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	f.opens++
	f.lastBaud = opts.BaudRate
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return f.closeErr
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Read(b []byte) (int, error) {
	if !f.IsOpen() {
		return 0, serial.ErrNotOpen
	}
	f.mu.Lock()
	rerr := f.readErr
	f.mu.Unlock()
	if rerr != nil {
		return 0, rerr
	}

	select {
	case chunk, ok := <-f.reads:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, chunk), nil
	case <-time.After(5 * time.Millisecond):
		return 0, serial.ErrReadTimeout
	}
}

func (f *fakeTransport) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, serial.ErrNotOpen
	}
	f.written = append(f.written, b...)
	return len(b), nil
}

func (f *fakeTransport) stats() (open bool, opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.opens, f.closes
}

func (f *fakeTransport) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// blockingTransport ignores its read timeout: Read returns only once the
// port is closed.
type blockingTransport struct {
	name string

	mu       sync.Mutex
	open     bool
	released chan struct{}
	reading  chan struct{}
}

func newBlockingTransport(name string) *blockingTransport {
	return &blockingTransport{name: name, reading: make(chan struct{}, 1)}
}

func (b *blockingTransport) Name() string { return b.name }

func (b *blockingTransport) Open(ctx context.Context, opts serial.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return serial.ErrAlreadyOpen
	}
	b.open = true
	b.released = make(chan struct{})
	return nil
}

func (b *blockingTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		b.open = false
		close(b.released)
	}
	return nil
}

func (b *blockingTransport) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *blockingTransport) Read(p []byte) (int, error) {
	b.mu.Lock()
	released := b.released
	open := b.open
	b.mu.Unlock()
	if !open {
		return 0, serial.ErrNotOpen
	}
	select {
	case b.reading <- struct{}{}:
	default:
	}
	<-released
	return 0, serial.ErrNotOpen
}

func (b *blockingTransport) Write(p []byte) (int, error) { return len(p), nil }

// ---- fake engine ----

type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	syncErrs  []error // consumed one per Sync call
	eraseErr  error
	writeErr  error
	block     chan struct{} // WriteFlash waits on it when non-nil
	started   chan struct{}
	portInfo  engine.PortInfo
	progressN int
}

func (e *fakeEngine) factory() engine.Factory {
	return func(p engine.Port) engine.Engine {
		e.mu.Lock()
		e.portInfo = p.Info()
		e.mu.Unlock()
		return e
	}
}

func (e *fakeEngine) record(c string) {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) Sync(ctx context.Context) error {
	e.record(engine.StageSync)
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.syncErrs) == 0 {
		return nil
	}
	err := e.syncErrs[0]
	e.syncErrs = e.syncErrs[1:]
	return err
}

func (e *fakeEngine) EraseFlash(ctx context.Context) error {
	e.record(engine.StageErase)
	return e.eraseErr
}

func (e *fakeEngine) WriteFlash(ctx context.Context, job engine.Job, progress engine.ProgressFunc) error {
	e.record(engine.StageProgram)
	if e.started != nil {
		close(e.started)
	}
	if e.block != nil {
		<-e.block
	}
	if e.writeErr != nil {
		return e.writeErr
	}
	for i, s := range job.Segments {
		half := len(s.Data) / 2
		progress(engine.Progress{Index: i, Written: half, Total: len(s.Data)})
		progress(engine.Progress{Index: i, Written: len(s.Data), Total: len(s.Data)})
		e.mu.Lock()
		e.progressN += 2
		e.mu.Unlock()
	}
	return nil
}

// ---- helpers ----

func testJob() engine.Job {
	return engine.Job{
		Segments: []engine.Segment{{Data: []byte("firmware-bytes"), Address: engine.DefaultAddress}},
		EraseAll: true,
		Compress: true,
	}
}

func texts(j *oplog.Journal) []string {
	var out []string
	for _, e := range j.Since(0) {
		out = append(out, e.Text)
	}
	return out
}

type harness struct {
	orch    *Orchestrator
	port    *fakeTransport
	eng     *fakeEngine
	journal *oplog.Journal
	sleeps  []time.Duration
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		port:    newFakeTransport("/dev/ttyUSB0"),
		eng:     &fakeEngine{},
		journal: oplog.NewJournal(0),
	}
	opener := func(name string) serial.Transport {
		h.port.name = name
		return h.port
	}
	sleep := func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	all := append([]Option{withSleep(sleep), WithStopGrace(200 * time.Millisecond)}, opts...)
	h.orch = New(NewSession(115200), opener, h.eng.factory(), h.journal, all...)
	return h
}
