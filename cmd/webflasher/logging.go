package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/byronin/esp32-webflasher/internal/config"
	"github.com/byronin/esp32-webflasher/internal/oplog"
)

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// consoleSink renders operator lines for a terminal: device output goes
// to out verbatim and everything else to status with its prefix.
type consoleSink struct {
	out    io.Writer
	status *oplog.TextWriter
}

func newConsoleSink(out, statusW io.Writer) *consoleSink {
	return &consoleSink{out: out, status: oplog.NewTextWriter(statusW)}
}

func (s *consoleSink) Emit(kind oplog.Kind, text string) {
	if kind == oplog.Data {
		_, _ = io.WriteString(s.out, text)
		return
	}
	s.status.Emit(kind, text)
}

// slogSink mirrors operator lines into the diagnostic log.
type slogSink struct {
	log *slog.Logger
}

func (s slogSink) Emit(kind oplog.Kind, text string) {
	switch kind {
	case oplog.Data:
		s.log.Debug("device output", "text", text)
	case oplog.Failure:
		s.log.Error("operator", "kind", kind.String(), "text", text)
	case oplog.Warning:
		s.log.Warn("operator", "kind", kind.String(), "text", text)
	case oplog.Progress:
		s.log.Debug("operator", "kind", kind.String(), "text", text)
	default:
		s.log.Info("operator", "kind", kind.String(), "text", text)
	}
}
