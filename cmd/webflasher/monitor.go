package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/byronin/esp32-webflasher/internal/session"
	"github.com/byronin/esp32-webflasher/internal/status"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream the device's serial output until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	addSerialFlags(monitorCmd)
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.Serial.Port == "" {
		return &session.TransportUnavailableError{Op: "monitor"}
	}

	orch, err := session.Build(appCfg, newConsoleSink(cmd.OutOrStdout(), cmd.ErrOrStderr()), logger)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.StartDebug(ctx); err != nil {
		return err
	}

	// The stream ends on its own at end of stream or on a read failure;
	// the session is Idle again in both cases.
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return orch.StopDebug()
		case <-tick.C:
			snap := orch.Snapshot()
			if snap.Mode != status.ModeIdle {
				continue
			}
			if snap.LastErrorCode != status.CodeOK {
				return &session.TransportFailureError{Op: "read", Port: snap.Port, Err: errors.New(snap.LastError)}
			}
			return nil
		}
	}
}
