package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/byronin/esp32-webflasher/internal/config"
	"github.com/byronin/esp32-webflasher/internal/firmware"
	"github.com/byronin/esp32-webflasher/internal/httpapi"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/session"
)

var (
	serveListen string
	serveStatic string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the firmware API, the web UI and host-side session control",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveStatic, "static", "public", "directory served at / (empty disables)")
	addSerialFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listen := appCfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}

	// ---- operator log ----
	journal := oplog.NewJournal(appCfg.Server.JournalEntries)
	sink := oplog.Multi(journal, slogSink{log: logger})

	// ---- session ----
	orch, err := session.Build(appCfg, sink, logger)
	if err != nil {
		return err
	}

	// ---- http ----
	static := serveStatic
	if static != "" {
		if info, err := os.Stat(static); err != nil || !info.IsDir() {
			logger.Info("static directory not found, web UI disabled", "dir", static)
			static = ""
		}
	}

	srv := httpapi.New(httpapi.Deps{
		Locator:   firmware.NewLocator(config.FirmwareDirSource(appCfg), firmware.WithLogger(logger)),
		Session:   orch,
		Journal:   journal,
		Sink:      sink,
		Ports:     serial.ListPorts,
		Flash:     appCfg.Flash,
		StaticDir: static,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx, listen)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return orch.Close()
	})
	return g.Wait()
}
