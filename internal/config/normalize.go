// internal/config/normalize.go
package config

import "strings"

// MaxSettleMs bounds the reopen settle delay.
const MaxSettleMs = 5000

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// FLASH SETTINGS: lower-case, empty means "keep"
	// ------------------------------------------------------------

	cfg.Flash.FlashSize = keepIfEmpty(cfg.Flash.FlashSize)
	cfg.Flash.FlashMode = keepIfEmpty(cfg.Flash.FlashMode)
	cfg.Flash.FlashFreq = keepIfEmpty(cfg.Flash.FlashFreq)
	cfg.Flash.Engine = strings.ToLower(strings.TrimSpace(cfg.Flash.Engine))

	// ------------------------------------------------------------
	// SERIAL: the settle delay must stay a short, bounded pause
	// ------------------------------------------------------------

	if cfg.Serial.SettleMs > MaxSettleMs {
		cfg.Serial.SettleMs = MaxSettleMs
	}

	if cfg.Console.Encoding == "" {
		cfg.Console.Encoding = "utf-8"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func keepIfEmpty(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "keep"
	}
	return v
}
