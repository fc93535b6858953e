// Package sim provides a simulated flashing engine.
//
// The simulated device keeps its flash contents in a directory on local
// disk: one file per written segment, named after the port and the flash
// address. Nothing is sent over the port, which makes it safe for dry runs
// with real hardware attached.
package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/byronin/esp32-webflasher/internal/engine"
)

// DefaultBlockSize matches the write block used by ESP flasher stubs.
const DefaultBlockSize = 0x4000

// ErrNotSynced is returned when erase/program runs before Sync.
var ErrNotSynced = errors.New("sim: device not synced")

// Option configures the simulated engine.
type Option func(*Engine)

// WithBlockSize sets the programming block size used for progress events.
func WithBlockSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.blockSize = n
		}
	}
}

// Engine is a simulated device bound to one port.
type Engine struct {
	port      engine.Port
	dir       string
	blockSize int

	mu     sync.Mutex
	synced bool
}

// New returns a Factory writing images under dir.
func New(dir string, opts ...Option) engine.Factory {
	return func(p engine.Port) engine.Engine {
		e := &Engine{
			port:      p,
			dir:       dir,
			blockSize: DefaultBlockSize,
		}
		for _, opt := range opts {
			opt(e)
		}
		return e
	}
}

// Sync marks the device as synchronized.
func (e *Engine) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.synced = true
	return nil
}

// EraseFlash removes every image previously written for this port.
func (e *Engine) EraseFlash(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.isSynced() {
		return ErrNotSynced
	}

	matches, err := filepath.Glob(filepath.Join(e.dir, e.prefix()+"-0x*.bin"))
	if err != nil {
		return fmt.Errorf("sim: erase: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("sim: erase %s: %w", m, err)
		}
	}
	return nil
}

// WriteFlash stores each segment and reports progress per block.
func (e *Engine) WriteFlash(ctx context.Context, job engine.Job, progress engine.ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.isSynced() {
		return ErrNotSynced
	}
	if err := job.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("sim: create image dir: %w", err)
	}

	for i, seg := range job.Segments {
		total := len(seg.Data)
		for written := 0; written < total; {
			written += e.blockSize
			if written > total {
				written = total
			}
			if progress != nil {
				progress(engine.Progress{Index: i, Written: written, Total: total})
			}
		}

		path := ImagePath(e.dir, e.portName(), seg.Address)
		if err := os.WriteFile(path, seg.Data, 0o644); err != nil {
			return fmt.Errorf("sim: write segment %d: %w", i, err)
		}
	}
	return nil
}

// ImagePath returns the file that holds the segment written at address.
func ImagePath(dir, port string, address uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%s-0x%05x.bin", portPrefix(port), address))
}

func (e *Engine) isSynced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synced
}

func (e *Engine) portName() string {
	if e.port == nil {
		return ""
	}
	return e.port.Info().Name
}

func (e *Engine) prefix() string {
	return portPrefix(e.portName())
}

func portPrefix(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "_" {
		return "device"
	}
	return base
}
