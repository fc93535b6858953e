package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/session"
	"github.com/byronin/esp32-webflasher/internal/status"
)

var (
	flashFile    string
	flashAddress uint32
	flashNoErase bool
)

var flashCmd = &cobra.Command{
	Use:   "flash [NAME]",
	Short: "Flash a firmware image onto the device on --port",
	Long: `Flash a firmware image onto the device on --port.

The image is either a firmware name resolved like the fetch command, or a
local file given with --file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFlash,
}

func init() {
	flashCmd.Flags().StringVarP(&flashFile, "file", "f", "", "local firmware file")
	flashCmd.Flags().Uint32VarP(&flashAddress, "address", "a", 0, "flash address (default from config, 0x1000)")
	flashCmd.Flags().BoolVar(&flashNoErase, "no-erase", false, "skip the full-chip erase stage")
	addSerialFlags(flashCmd)
	rootCmd.AddCommand(flashCmd)
}

func runFlash(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := newConsoleSink(cmd.OutOrStdout(), cmd.ErrOrStderr())

	name, data, err := loadImage(args)
	if err != nil {
		return err
	}
	oplog.Emitf(sink, oplog.Info, "Loaded %s (%s)", name, session.FormatMB(len(data)))

	if appCfg.Serial.Port == "" {
		return &session.TransportUnavailableError{Op: "flash"}
	}
	if !knownBaud(appCfg.Serial.BaudRate) {
		logger.Info("non-standard baud rate", "baud", appCfg.Serial.BaudRate)
	}

	orch, err := session.Build(appCfg, sink, logger)
	if err != nil {
		return err
	}
	defer orch.Close()

	job := session.JobFor(appCfg.Flash, data)
	if cmd.Flags().Changed("address") {
		job.Segments[0].Address = flashAddress
	}
	if flashNoErase {
		job.EraseAll = false
	}

	return flashWith(ctx, orch, job)
}

func flashWith(ctx context.Context, orch *session.Orchestrator, job engine.Job) error {
	if err := orch.StartFlash(ctx, job); err != nil {
		return err
	}
	snap := orch.Snapshot()
	logger.Debug("flash finished", "session", snap.SessionID, "port", snap.Port, "percent", snap.Percent)
	return nil
}

// loadImage reads --file or resolves the NAME argument.
func loadImage(args []string) (string, []byte, error) {
	switch {
	case flashFile != "" && len(args) > 0:
		return "", nil, &status.InvalidRequestError{Reason: "give either NAME or --file, not both"}
	case flashFile != "":
		data, err := os.ReadFile(flashFile)
		if err != nil {
			return "", nil, &status.InvalidRequestError{Reason: fmt.Sprintf("read %s: %v", flashFile, err)}
		}
		return filepath.Base(flashFile), data, nil
	case len(args) == 1:
		img, err := newLocator().Fetch(args[0])
		if err != nil {
			return "", nil, err
		}
		return img.Name, img.Data, nil
	default:
		return "", nil, &status.InvalidRequestError{Reason: "no firmware given; pass NAME or --file"}
	}
}
