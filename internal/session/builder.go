package session

import (
	"fmt"
	"time"

	cfg "github.com/byronin/esp32-webflasher/internal/config"
	"github.com/byronin/esp32-webflasher/internal/console"
	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/engine/sim"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
)

// Build wires an Orchestrator from validated and normalized configuration.
// The configured port, if any, is selected but not opened.
func Build(c *cfg.Config, sink oplog.Sink, logger Logger) (*Orchestrator, error) {
	engines, err := BuildEngine(c.Flash)
	if err != nil {
		return nil, err
	}

	enc, err := console.Encoding(c.Console.Encoding)
	if err != nil {
		return nil, fmt.Errorf("console encoding: %w", err)
	}

	opener, serialOpts := serial.Build(c.Serial)

	o := New(
		NewSession(serialOpts.BaudRate),
		opener,
		engines,
		sink,
		WithLogger(logger),
		WithReadTimeout(serialOpts.ReadTimeout),
		WithSettleDelay(time.Duration(c.Serial.SettleMs)*time.Millisecond),
		WithSyncRetries(c.Flash.SyncRetries),
		WithEncoding(enc),
	)

	if c.Serial.Port != "" {
		if err := o.SelectPort(c.Serial.Port); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// BuildEngine returns the engine factory named by c.Engine.
func BuildEngine(c cfg.FlashConfig) (engine.Factory, error) {
	switch c.Engine {
	case "sim", "":
		return sim.New(c.ImageDir), nil
	default:
		return nil, fmt.Errorf("unknown flash engine %q", c.Engine)
	}
}

// JobFor builds a single-segment job for data from the flash settings.
// The configured address is used as is; 0x0 is a valid target.
func JobFor(c cfg.FlashConfig, data []byte) engine.Job {
	return engine.Job{
		Segments:  []engine.Segment{{Data: data, Address: c.Address}},
		Compress:  c.Compress,
		EraseAll:  c.EraseAll,
		FlashSize: c.FlashSize,
		FlashMode: c.FlashMode,
		FlashFreq: c.FlashFreq,
	}.WithDefaults()
}
