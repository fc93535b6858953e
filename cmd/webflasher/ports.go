package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/byronin/esp32-webflasher/internal/serial"
)

var portsJSON bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports on this host, USB devices first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if portsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if ports == nil {
				ports = []serial.PortInfo{}
			}
			return enc.Encode(ports)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PORT\tUSB\tVID:PID\tPRODUCT")
		for _, p := range ports {
			id := ""
			if p.IsUSB {
				id = p.VID + ":" + p.PID
			}
			fmt.Fprintf(tw, "%s\t%v\t%s\t%s\n", p.Name, p.IsUSB, id, p.Product)
		}
		return tw.Flush()
	},
}

func init() {
	portsCmd.Flags().BoolVar(&portsJSON, "json", false, "print JSON")
	rootCmd.AddCommand(portsCmd)
}
