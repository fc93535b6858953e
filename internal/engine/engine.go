// Package engine declares the flashing engine capability a session drives.
//
// An engine implements a device programming protocol (sync handshake, flash
// erase, chunked programming) on top of an already opened Port. The session
// never talks the protocol itself; it only sequences the three stages and
// reports on them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Keep leaves the device's stored flash size/mode/frequency unchanged.
const Keep = "keep"

// DefaultAddress is where an ESP32 application image is usually written.
const DefaultAddress uint32 = 0x1000

// Stage names, in execution order.
const (
	StageSync    = "sync"
	StageErase   = "erase"
	StageProgram = "program"
)

// PortInfo describes the port an engine is bound to.
type PortInfo struct {
	Name     string
	BaudRate int
}

// Port is exactly what an engine may use from the transport.
type Port interface {
	io.ReadWriter
	Info() PortInfo
}

// Segment is one payload and the flash address it is written to.
type Segment struct {
	Data    []byte
	Address uint32
}

// Job is one programming request.
type Job struct {
	Segments []Segment

	// Compress asks the engine to send compressed blocks.
	Compress bool

	// EraseAll runs the full-chip erase stage before programming.
	// Engines that erase as part of programming are driven with EraseAll=false.
	EraseAll bool

	FlashSize string
	FlashMode string
	FlashFreq string
}

// ErrNoPayload is returned by Validate for a job without data.
var ErrNoPayload = errors.New("engine: no firmware payload")

// Validate checks that every segment carries data.
func (j Job) Validate() error {
	if len(j.Segments) == 0 {
		return ErrNoPayload
	}
	for i, s := range j.Segments {
		if len(s.Data) == 0 {
			return fmt.Errorf("segment %d at 0x%x: %w", i, s.Address, ErrNoPayload)
		}
	}
	return nil
}

// TotalBytes returns the sum of all segment sizes.
func (j Job) TotalBytes() int {
	n := 0
	for _, s := range j.Segments {
		n += len(s.Data)
	}
	return n
}

// WithDefaults returns a copy with empty flash settings set to Keep.
func (j Job) WithDefaults() Job {
	if j.FlashSize == "" {
		j.FlashSize = Keep
	}
	if j.FlashMode == "" {
		j.FlashMode = Keep
	}
	if j.FlashFreq == "" {
		j.FlashFreq = Keep
	}
	return j
}

// Progress is reported after each block an engine programs.
type Progress struct {
	Index   int // segment index
	Written int // bytes of this segment sent so far
	Total   int // bytes of this segment
}

// Percent is floor(Written/Total*100), or 0 when Total is 0.
func (p Progress) Percent() int {
	if p.Total <= 0 || p.Written <= 0 {
		return 0
	}
	pct := int64(p.Written) * 100 / int64(p.Total)
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// ProgressFunc receives progress events in the order blocks complete.
// It must return quickly.
type ProgressFunc func(Progress)

// Engine performs the device protocol.
type Engine interface {
	// Sync performs the synchronization handshake.
	Sync(ctx context.Context) error

	// EraseFlash erases the whole flash chip.
	EraseFlash(ctx context.Context) error

	// WriteFlash programs every segment of job and reports progress.
	WriteFlash(ctx context.Context, job Job, progress ProgressFunc) error
}

// Factory binds an engine to an opened port. It is called once per flash
// operation, after the port has been opened.
type Factory func(p Port) Engine
