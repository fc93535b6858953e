package session

import (
	"context"
	"time"

	"golang.org/x/text/encoding"
)

// Defaults applied by New.
const (
	DefaultSettleDelay = 250 * time.Millisecond
	DefaultSyncRetries = 3
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultStopGrace   = 2 * time.Second
)

// Logger receives diagnostic messages. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type options struct {
	logger      Logger
	settleDelay time.Duration
	syncRetries int
	readTimeout time.Duration
	stopGrace   time.Duration
	encoding    encoding.Encoding
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		logger:      noopLogger{},
		settleDelay: DefaultSettleDelay,
		syncRetries: DefaultSyncRetries,
		readTimeout: DefaultReadTimeout,
		stopGrace:   DefaultStopGrace,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

// Option configures an Orchestrator.
type Option func(*options)

// WithLogger sets the diagnostic logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSettleDelay sets the wait between closing an already open port and
// reopening it.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.settleDelay = d
		}
	}
}

// WithSyncRetries sets how many sync attempts are made before the sync
// stage fails. Values below 1 mean a single attempt.
func WithSyncRetries(n int) Option {
	return func(o *options) { o.syncRetries = n }
}

// WithReadTimeout sets the per-read timeout the port is opened with.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

// WithStopGrace sets how long StopDebug waits for the reader before it
// closes the port underneath a blocked read.
func WithStopGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stopGrace = d
		}
	}
}

// WithEncoding sets the text encoding of debug output. nil means UTF-8.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) { o.encoding = enc }
}

// withSleep replaces the settle wait (tests).
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
