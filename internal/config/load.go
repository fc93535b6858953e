// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvFirmwareDir overrides firmware.dir when set.
const EnvFirmwareDir = "FIRMWARE_DIR"

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:         ":8080",
			JournalEntries: 2048,
		},
		Serial: SerialConfig{
			BaudRate:      115200,
			ReadTimeoutMs: 100,
			SettleMs:      250,
		},
		Flash: FlashConfig{
			Address:     0x1000,
			Compress:    true,
			EraseAll:    true,
			FlashSize:   "keep",
			FlashMode:   "keep",
			FlashFreq:   "keep",
			SyncRetries: 3,
			Engine:      "sim",
			ImageDir:    "flash-images",
		},
		Console: ConsoleConfig{
			Encoding: "utf-8",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file on top of Default().
// An empty path returns the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return &cfg, nil
}

// FirmwareDirSource returns a function that yields the raw override
// directory at call time: FIRMWARE_DIR when set, else firmware.dir.
func FirmwareDirSource(cfg *Config) func() string {
	return func() string {
		if v := os.Getenv(EnvFirmwareDir); v != "" {
			return v
		}
		if cfg == nil {
			return ""
		}
		return cfg.Firmware.Dir
	}
}
