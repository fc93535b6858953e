package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/byronin/esp32-webflasher/internal/config"
	"github.com/byronin/esp32-webflasher/internal/firmware"
)

var fetchOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List .bin and .hex files in the firmware directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		names, err := newLocator().List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch NAME",
	Short: "Resolve a firmware name and write its bytes to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", `output file ("-" for stdout, default: the firmware's base name)`)
	rootCmd.AddCommand(listCmd, fetchCmd)
}

func newLocator() *firmware.Locator {
	return firmware.NewLocator(config.FirmwareDirSource(appCfg), firmware.WithLogger(logger))
}

func runFetch(cmd *cobra.Command, args []string) error {
	img, err := newLocator().Fetch(args[0])
	if err != nil {
		var nf *firmware.FileNotFoundError
		if errors.As(err, &nf) {
			for _, p := range nf.Tried {
				fmt.Fprintf(cmd.ErrOrStderr(), "checked: %s\n", p)
			}
		}
		return err
	}

	if fetchOutput == "-" {
		_, err := cmd.OutOrStdout().Write(img.Data)
		return err
	}

	dst := fetchOutput
	if dst == "" {
		dst = img.Name
	}
	if err := os.WriteFile(filepath.Clean(dst), img.Data, 0o644); err != nil {
		return err
	}
	logger.Info("firmware written", "name", img.Name, "from", img.Path, "to", dst, "bytes", len(img.Data))
	return nil
}
