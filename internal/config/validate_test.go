// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

// helper to build a valid config quickly
func valid() *Config {
	c := Default()
	return &c
}

// ---- tests ----

func TestValidate_DefaultsPass(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BaudRateMustBePositive(t *testing.T) {
	cfg := valid()
	cfg.Serial.BaudRate = 0

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected baud rate error, got nil")
	}
}

func TestValidate_FlashModeRejected(t *testing.T) {
	cfg := valid()
	cfg.Flash.FlashMode = "turbo"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected flash_mode error, got nil")
	}
}

func TestValidate_FlashModeCaseInsensitive(t *testing.T) {
	cfg := valid()
	cfg.Flash.FlashMode = "DIO"
	cfg.Flash.FlashSize = "4MB"

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownEngineRejected(t *testing.T) {
	cfg := valid()
	cfg.Flash.Engine = "esptool"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected engine error, got nil")
	}
}

func TestValidate_UnknownEncodingRejected(t *testing.T) {
	cfg := valid()
	cfg.Console.Encoding = "klingon"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected encoding error, got nil")
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := valid()
	cfg.Flash.FlashMode = "DIO"
	cfg.Serial.SettleMs = 60000

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Flash.FlashMode != "DIO" || cfg.Serial.SettleMs != 60000 {
		t.Fatalf("Validate mutated config: %+v", cfg)
	}
}

func TestNormalize_FillsKeepAndClampsSettle(t *testing.T) {
	cfg := valid()
	cfg.Flash.FlashSize = ""
	cfg.Flash.FlashMode = " DIO "
	cfg.Serial.SettleMs = 60000
	cfg.Console.Encoding = ""

	Normalize(cfg)

	if cfg.Flash.FlashSize != "keep" {
		t.Fatalf("flash_size: got %q want keep", cfg.Flash.FlashSize)
	}
	if cfg.Flash.FlashMode != "dio" {
		t.Fatalf("flash_mode: got %q want dio", cfg.Flash.FlashMode)
	}
	if cfg.Serial.SettleMs != MaxSettleMs {
		t.Fatalf("settle_ms: got %d want %d", cfg.Serial.SettleMs, MaxSettleMs)
	}
	if cfg.Console.Encoding != "utf-8" {
		t.Fatalf("encoding: got %q", cfg.Console.Encoding)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flasher.yaml")
	body := []byte("firmware:\n  dir: \"~/fw\"\nserial:\n  baud_rate: 921600\nflash:\n  erase_all: false\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.Firmware.Dir != "~/fw" {
		t.Fatalf("firmware.dir: got %q", cfg.Firmware.Dir)
	}
	if cfg.Serial.BaudRate != 921600 {
		t.Fatalf("baud: got %d", cfg.Serial.BaudRate)
	}
	if cfg.Flash.EraseAll {
		t.Fatalf("erase_all should be overridden to false")
	}
	// untouched keys keep defaults
	if cfg.Flash.Address != 0x1000 || cfg.Serial.ReadTimeoutMs != 100 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flasher.yaml")
	if err := os.WriteFile(path, []byte("serial:\n  baud: 9600\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown key error, got nil")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Fatalf("baud: got %d", cfg.Serial.BaudRate)
	}
}

func TestFirmwareDirSource_EnvWins(t *testing.T) {
	cfg := valid()
	cfg.Firmware.Dir = "from-file"
	src := FirmwareDirSource(cfg)

	t.Setenv(EnvFirmwareDir, "")
	if got := src(); got != "from-file" {
		t.Fatalf("got %q want from-file", got)
	}

	t.Setenv(EnvFirmwareDir, "/srv/fw")
	if got := src(); got != "/srv/fw" {
		t.Fatalf("got %q want /srv/fw", got)
	}
}
