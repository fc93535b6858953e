// internal/oplog/sink.go
package oplog

import (
	"fmt"
	"time"
)

// Kind classifies one operator log line.
type Kind uint8

const (
	Info Kind = iota
	Success
	Warning
	Failure
	Progress
	Data
)

// Prefix returns the distinct marker rendered in front of a line.
// Failures must always be distinguishable from success lines.
func (k Kind) Prefix() string {
	switch k {
	case Success:
		return "[ok]"
	case Warning:
		return "[warn]"
	case Failure:
		return "[error]"
	case Progress:
		return "[prog]"
	case Data:
		return "[rx]"
	default:
		return "[info]"
	}
}

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Failure:
		return "failure"
	case Progress:
		return "progress"
	case Data:
		return "data"
	default:
		return "info"
	}
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Entry is one delivered operator log line.
type Entry struct {
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
}

// Line renders the entry with its prefix.
func (e Entry) Line() string {
	return e.Kind.Prefix() + " " + e.Text
}

// Sink is the delivery-only contract for operator log lines.
// Implementations must deliver lines in call order; no batching or reordering.
type Sink interface {
	Emit(kind Kind, text string)
}

// Emitf formats and emits a line.
func Emitf(s Sink, kind Kind, format string, args ...interface{}) {
	if s == nil {
		return
	}
	s.Emit(kind, fmt.Sprintf(format, args...))
}

// Discard drops every line.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Kind, string) {}

// Multi fans one line out to every sink, in argument order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Emit(kind Kind, text string) {
	for _, s := range m {
		s.Emit(kind, text)
	}
}
