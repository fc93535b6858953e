package session

import (
	"errors"
	"fmt"

	"github.com/byronin/esp32-webflasher/internal/status"
)

var errNoEngine = errors.New("no flashing engine configured")

// TransportUnavailableError is returned when no port has been selected.
type TransportUnavailableError struct {
	Op string
}

func (e *TransportUnavailableError) Error() string {
	return fmt.Sprintf("%s: no serial port selected", e.Op)
}

func (e *TransportUnavailableError) Code() uint16 { return status.CodeTransportUnavailable }

// TransportFailureError wraps an open/read/write failure on the port.
type TransportFailureError struct {
	Op   string
	Port string
	Err  error
}

func (e *TransportFailureError) Error() string {
	return fmt.Sprintf("serial %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportFailureError) Unwrap() error { return e.Err }

func (e *TransportFailureError) Code() uint16 { return status.CodeTransportFailure }

// EngineFailureError wraps a failed flashing stage.
type EngineFailureError struct {
	Stage string
	Err   error
}

func (e *EngineFailureError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *EngineFailureError) Unwrap() error { return e.Err }

func (e *EngineFailureError) Code() uint16 { return status.CodeEngineFailure }

// BusyError is returned when an operation conflicts with the current mode.
type BusyError struct {
	Mode Mode
	Op   string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Mode)
}

func (e *BusyError) Code() uint16 { return status.CodeBusy }
