package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/byronin/esp32-webflasher/internal/engine"
	"github.com/byronin/esp32-webflasher/internal/oplog"
	"github.com/byronin/esp32-webflasher/internal/serial"
	"github.com/byronin/esp32-webflasher/internal/session"
	"github.com/byronin/esp32-webflasher/internal/status"
)

type portRequest struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
}

type flashRequest struct {
	FileName string  `json:"fileName"`
	Address  *uint32 `json:"address,omitempty"`
	EraseAll *bool   `json:"eraseAll,omitempty"`
}

type logResponse struct {
	Entries []oplog.Entry `json:"entries"`
	Last    uint64        `json:"last"`
}

func (s *Server) portsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	ports, err := s.deps.Ports()
	if err != nil {
		s.log.Error("port enumeration failed", "err", err)
		s.writeError(w, status.CodeInternal, "Failed to enumerate serial ports")
		return
	}
	if ports == nil {
		ports = []serial.PortInfo{}
	}
	s.writeData(w, ports)
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeData(w, s.deps.Session.Snapshot())
}

func (s *Server) sessionPortHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req portRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, status.CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Port == "" && req.BaudRate == 0 {
		s.writeError(w, status.CodeInvalidRequest, "port or baudRate is required")
		return
	}

	orch := s.deps.Session
	if req.BaudRate != 0 {
		if err := orch.SetBaudRate(req.BaudRate); err != nil {
			s.writeErr(w, err)
			return
		}
	}
	if req.Port != "" {
		if err := orch.SelectPort(req.Port); err != nil {
			s.writeErr(w, err)
			return
		}
	}
	s.writeData(w, orch.Snapshot())
}

// sessionFlashHandler flashes either a raw octet-stream body or a firmware
// file named in a JSON body. It returns once the flash has finished; the
// flash runs to completion even if the client goes away.
func (s *Server) sessionFlashHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	job, name, err := s.readFlashJob(w, r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	oplog.Emitf(s.deps.Sink, oplog.Info, "Loaded %s (%s)", name, session.FormatMB(job.TotalBytes()))

	// A dropped connection must not abort a flash after the chip was erased.
	if err := s.deps.Session.StartFlash(context.WithoutCancel(r.Context()), job); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeData(w, s.deps.Session.Snapshot())
}

func (s *Server) readFlashJob(w http.ResponseWriter, r *http.Request) (engine.Job, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/octet-stream" {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return engine.Job{}, "", &status.InvalidRequestError{Reason: "firmware upload exceeds " + strconv.Itoa(MaxUploadBytes) + " bytes"}
			}
			return engine.Job{}, "", &status.InvalidRequestError{Reason: "unreadable request body"}
		}
		job := session.JobFor(s.deps.Flash, data)
		if v := r.URL.Query().Get("address"); v != "" {
			addr, perr := strconv.ParseUint(v, 0, 32)
			if perr != nil {
				return engine.Job{}, "", &status.InvalidRequestError{Reason: "invalid address " + strconv.Quote(v)}
			}
			job.Segments[0].Address = uint32(addr)
		}
		return job, "upload", nil
	}

	var req flashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return engine.Job{}, "", &status.InvalidRequestError{Reason: "invalid request body"}
	}
	img, err := s.deps.Locator.Fetch(req.FileName)
	if err != nil {
		return engine.Job{}, "", err
	}
	job := session.JobFor(s.deps.Flash, img.Data)
	if req.Address != nil {
		job.Segments[0].Address = *req.Address
	}
	if req.EraseAll != nil {
		job.EraseAll = *req.EraseAll
	}
	return job, img.Name, nil
}

func (s *Server) sessionDebugHandler(w http.ResponseWriter, r *http.Request) {
	orch := s.deps.Session
	switch r.Method {
	case http.MethodPost:
		if err := orch.StartDebug(r.Context()); err != nil {
			s.writeErr(w, err)
			return
		}
	case http.MethodDelete:
		if err := orch.StopDebug(); err != nil {
			s.writeErr(w, err)
			return
		}
	default:
		s.methodNotAllowed(w, http.MethodPost, http.MethodDelete)
		return
	}
	s.writeData(w, orch.Snapshot())
}

func (s *Server) sessionLogHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		if s.deps.Journal != nil {
			s.deps.Journal.Clear()
		}
		s.writeData(w, logResponse{Entries: []oplog.Entry{}, Last: s.lastSeq()})
		return
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		return
	}
	if s.deps.Journal == nil {
		s.writeData(w, logResponse{Entries: []oplog.Entry{}})
		return
	}

	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, status.CodeInvalidRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}

	entries := s.deps.Journal.Since(since)
	if entries == nil {
		entries = []oplog.Entry{}
	}
	s.writeData(w, logResponse{Entries: entries, Last: s.deps.Journal.Last()})
}

func (s *Server) lastSeq() uint64 {
	if s.deps.Journal == nil {
		return 0
	}
	return s.deps.Journal.Last()
}
