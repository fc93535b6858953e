package serial

import (
	"time"

	cfg "github.com/byronin/esp32-webflasher/internal/config"
)

// Build returns the Opener and open options derived from configuration.
// The opener only acquires handles; opening is left to the session, which
// owns the open/close discipline.
func Build(c cfg.SerialConfig) (Opener, Options) {
	opener := func(name string) Transport {
		return NewPort(name)
	}

	opts := Options{
		BaudRate:    c.BaudRate,
		ReadTimeout: time.Duration(c.ReadTimeoutMs) * time.Millisecond,
	}

	return opener, opts
}
