// cmd/webflasher/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/byronin/esp32-webflasher/internal/config"
	"github.com/byronin/esp32-webflasher/internal/status"
)

var (
	flagConfig      string
	flagEnvFile     string
	flagLogLevel    string
	flagLogFormat   string
	flagFirmwareDir string

	// loaded by the root PersistentPreRunE
	appCfg *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "webflasher",
	Short:         "Serve and flash ESP32 firmware over a serial port",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading FIRMWARE_DIR (missing file is ignored)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	pf.StringVar(&flagFirmwareDir, "firmware-dir", "", "firmware override directory (FIRMWARE_DIR wins when set)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "webflasher: %v\n", err)
		os.Exit(status.ExitCode(status.CodeOf(err)))
	}
}

// setup loads, overrides, validates and normalizes configuration and
// builds the diagnostic logger.
func setup(cmd *cobra.Command) error {
	// --------------------
	// Environment
	// --------------------

	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file %s: %w", flagEnvFile, err)
		}
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	appCfg = cfg
	logger = newLogger(cfg.Log, os.Stderr)
	logger.Debug("configuration loaded", "path", flagConfig, "engine", cfg.Flash.Engine)
	return nil
}

// applyFlags overrides file values with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}
	if flags.Changed("firmware-dir") {
		cfg.Firmware.Dir = flagFirmwareDir
	}
	if flags.Changed("port") {
		cfg.Serial.Port = flagPort
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = flagBaud
	}
}
