// internal/status/snapshot.go
package status

import "time"

// Snapshot is the externally visible state of one serial session.
// It carries no logic and no history beyond the last error and last progress.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Port      string    `json:"port,omitempty"`
	BaudRate  int       `json:"baud_rate"`
	PortOpen  bool      `json:"port_open"`
	UpdatedAt time.Time `json:"updated_at"`

	// LastErrorCode is 0 until an operation fails; it is not reset by
	// later successes so the operator can still see what went wrong.
	LastErrorCode uint16 `json:"last_error_code"`
	LastError     string `json:"last_error,omitempty"`

	// Percent of the last reported flash progress event.
	Percent int `json:"percent"`
}
