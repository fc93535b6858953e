package main

import (
	"github.com/spf13/cobra"

	"github.com/byronin/esp32-webflasher/internal/serial"
)

var (
	flagPort string
	flagBaud int
)

// addSerialFlags registers --port and --baud on cmd. Values override the
// configuration file.
func addSerialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagPort, "port", "p", "", "serial device (e.g. /dev/ttyUSB0, COM3)")
	cmd.Flags().IntVarP(&flagBaud, "baud", "b", 0, "baud rate, usually one of 9600, 57600, 115200, 230400, 460800, 921600")
}

func knownBaud(rate int) bool {
	for _, r := range serial.StandardBaudRates {
		if r == rate {
			return true
		}
	}
	return false
}
