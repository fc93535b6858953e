// Package session owns the single serial session of a web flasher and
// arbitrates between flashing and debug streaming on it.
//
// One Orchestrator drives one SerialSession. Every transition of the
// session's mode happens under the orchestrator's mutex, and a mode other
// than Idle is reserved before any long-running stage starts, so two
// callers can never both flash, both stream, or flash while streaming.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/byronin/esp32-webflasher/internal/console"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/status"
)

// Mode is what the session is currently doing with its transport.
type Mode uint8

const (
	Idle Mode = iota
	Flashing
	Debugging
)

func (m Mode) String() string {
	switch m {
	case Flashing:
		return status.ModeFlashing
	case Debugging:
		return status.ModeDebugging
	default:
		return status.ModeIdle
	}
}

// CleanupRecord is one best-effort close attempt.
type CleanupRecord struct {
	Op  string
	Err error
	At  time.Time
}

// SerialSession is the aggregate of one serial session: the selected
// transport, its baud rate, the active debug reader and the current mode.
// It holds no lock of its own; the owning Orchestrator guards it.
type SerialSession struct {
	id        string
	transport serial.Transport
	baudRate  int
	mode      Mode
	reader    *console.Reader

	lastErr   error
	percent   int
	updatedAt time.Time
	cleanups  []CleanupRecord
}

// maxCleanups bounds the cleanup history kept for diagnostics.
const maxCleanups = 32

// NewSession creates an idle session without a selected port.
// A non-positive baud rate selects 115200.
func NewSession(baudRate int) *SerialSession {
	if baudRate <= 0 {
		baudRate = 115200
	}
	return &SerialSession{
		id:        uuid.NewString(),
		baudRate:  baudRate,
		mode:      Idle,
		updatedAt: time.Now(),
	}
}

func (s *SerialSession) portOpen() bool {
	return s.transport != nil && s.transport.IsOpen()
}

// consistent reports whether the aggregate invariants hold:
// a busy mode implies an open transport, and a reader exists only while
// debugging.
func (s *SerialSession) consistent() bool {
	if s.mode != Idle && !s.portOpen() {
		return false
	}
	return (s.reader != nil) == (s.mode == Debugging)
}

func (s *SerialSession) record(c CleanupRecord) {
	s.cleanups = append(s.cleanups, c)
	if len(s.cleanups) > maxCleanups {
		s.cleanups = s.cleanups[len(s.cleanups)-maxCleanups:]
	}
}

func (s *SerialSession) snapshot() status.Snapshot {
	snap := status.Snapshot{
		SessionID: s.id,
		Mode:      s.mode.String(),
		BaudRate:  s.baudRate,
		PortOpen:  s.portOpen(),
		UpdatedAt: s.updatedAt,
		Percent:   s.percent,
	}
	if s.transport != nil {
		snap.Port = s.transport.Name()
	}
	if s.lastErr != nil {
		snap.LastErrorCode = status.CodeOf(s.lastErr)
		snap.LastError = s.lastErr.Error()
	}
	return snap
}
