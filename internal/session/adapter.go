package session

import (
	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/serial"
)

// enginePort exposes an opened transport to an engine without its
// lifecycle methods. Engines can read and write but never open or close.
type enginePort struct {
	t    serial.Transport
	baud int
}

func (p enginePort) Read(b []byte) (int, error)  { return p.t.Read(b) }
func (p enginePort) Write(b []byte) (int, error) { return p.t.Write(b) }

func (p enginePort) Info() engine.PortInfo {
	return engine.PortInfo{Name: p.t.Name(), BaudRate: p.baud}
}
