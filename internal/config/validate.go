// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	flashSizes = []string{"keep", "detect", "1mb", "2mb", "4mb", "8mb", "16mb"}
	flashModes = []string{"keep", "qio", "qout", "dio", "dout"}
	flashFreqs = []string{"keep", "80m", "40m", "26m", "20m"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	engines    = []string{"sim"}
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be > 0, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.ReadTimeoutMs <= 0 {
		return fmt.Errorf("serial.read_timeout_ms must be > 0, got %d", cfg.Serial.ReadTimeoutMs)
	}
	if cfg.Serial.SettleMs < 0 {
		return fmt.Errorf("serial.settle_ms must be >= 0, got %d", cfg.Serial.SettleMs)
	}

	// ------------------------------------------------------------
	// FLASH
	// ------------------------------------------------------------

	if err := oneOf("flash.flash_size", cfg.Flash.FlashSize, flashSizes); err != nil {
		return err
	}
	if err := oneOf("flash.flash_mode", cfg.Flash.FlashMode, flashModes); err != nil {
		return err
	}
	if err := oneOf("flash.flash_freq", cfg.Flash.FlashFreq, flashFreqs); err != nil {
		return err
	}
	if cfg.Flash.SyncRetries < 0 {
		return fmt.Errorf("flash.sync_retries must be >= 0, got %d", cfg.Flash.SyncRetries)
	}
	if strings.TrimSpace(cfg.Flash.Engine) == "" {
		return fmt.Errorf("flash.engine is required")
	}
	if err := oneOf("flash.engine", cfg.Flash.Engine, engines); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// CONSOLE
	// ------------------------------------------------------------

	if cfg.Console.Encoding != "" {
		if _, err := htmlindex.Get(cfg.Console.Encoding); err != nil {
			return fmt.Errorf("console.encoding %q: %w", cfg.Console.Encoding, err)
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if err := oneOf("log.level", cfg.Log.Level, logLevels); err != nil {
		return err
	}
	if err := oneOf("log.format", cfg.Log.Format, logFormats); err != nil {
		return err
	}

	if cfg.Server.JournalEntries < 0 {
		return fmt.Errorf("server.journal_entries must be >= 0, got %d", cfg.Server.JournalEntries)
	}

	return nil
}

// oneOf accepts empty values (filled by Normalize) and case-insensitive matches.
func oneOf(field, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s %q is not one of %s", field, value, strings.Join(allowed, ", "))
}
