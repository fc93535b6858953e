// Package httpapi serves the web flasher's HTTP surface: firmware listing
// and download, host serial port enumeration, control of the host-side
// serial session and polling of the operator log.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	cfg "github.com/byronin/esp32-webflasher/internal/config"
	"github.com/byronin/esp32-webflasher/internal/firmware"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/session"
)

// MaxUploadBytes bounds a raw firmware upload.
const MaxUploadBytes = 16 << 20

// Deps are the components the server exposes.
type Deps struct {
	Locator *firmware.Locator
	Session *session.Orchestrator // nil disables /api/session routes
	Journal *oplog.Journal
	Sink    oplog.Sink // operator log; defaults to Journal
	Ports   serial.Enumerate
	Flash   cfg.FlashConfig

	// StaticDir, when set, is served at "/".
	StaticDir string

	Logger *slog.Logger
}

type Server struct {
	deps    Deps
	log     *slog.Logger
	httpSrv *http.Server

	mu       sync.Mutex
	listener net.Listener
	shutdown sync.Once
	shutErr  error
}

// New creates a Server and registers its routes.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Sink == nil {
		deps.Sink = oplog.Discard
		if deps.Journal != nil {
			deps.Sink = deps.Journal
		}
	}
	if deps.Ports == nil {
		deps.Ports = serial.ListPorts
	}

	mux := http.NewServeMux()
	s := &Server{
		deps: deps,
		log:  deps.Logger,
		httpSrv: &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/api/firmware", s.firmwareHandler)
	mux.HandleFunc("/api/firmware/", s.firmwareByNameHandler)
	mux.HandleFunc("/api/ports", s.portsHandler)
	if deps.Session != nil {
		mux.HandleFunc("/api/session", s.sessionHandler)
		mux.HandleFunc("/api/session/port", s.sessionPortHandler)
		mux.HandleFunc("/api/session/flash", s.sessionFlashHandler)
		mux.HandleFunc("/api/session/debug", s.sessionDebugHandler)
		mux.HandleFunc("/api/session/log", s.sessionLogHandler)
	}
	if deps.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(deps.StaticDir)))
	}

	s.httpSrv.Handler = s.logRequests(securityHeaders(mux))
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start listens on addr and serves until ctx is done or serving fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	}
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		s.shutErr = s.httpSrv.Shutdown(ctx)
	})
	return s.shutErr
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
