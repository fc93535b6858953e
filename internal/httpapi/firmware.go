package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/byronin/esp32-webflasher/internal/firmware"
	"github.com/byronin/esp32-webflasher/internal/status"
)

type fetchRequest struct {
	FileName string `json:"fileName"`
}

func (s *Server) firmwareHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listFirmware(w)
	case http.MethodPost:
		var req fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, status.CodeInvalidRequest, "invalid request body")
			return
		}
		s.fetchFirmware(w, req.FileName)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) firmwareByNameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	raw := strings.TrimPrefix(r.URL.EscapedPath(), "/api/firmware/")
	name, err := url.PathUnescape(raw)
	if err != nil {
		s.writeError(w, status.CodeInvalidRequest, "invalid firmware name encoding")
		return
	}
	s.fetchFirmware(w, name)
}

func (s *Server) listFirmware(w http.ResponseWriter) {
	names, err := s.deps.Locator.List()
	if err != nil {
		var dnf *firmware.DirectoryNotFoundError
		if errors.As(err, &dnf) {
			s.writeBody(w, errorBody{
				Error: "Firmware directory not found: " + dnf.Path,
				Code:  status.CodeDirectoryNotFound,
				Path:  dnf.Path,
			})
			return
		}
		s.log.Error("firmware list failed", "err", err)
		s.writeError(w, status.CodeInternal, "Failed to list firmware files")
		return
	}
	s.writeData(w, names)
}

func (s *Server) fetchFirmware(w http.ResponseWriter, name string) {
	img, err := s.deps.Locator.Fetch(name)
	if err != nil {
		var nf *firmware.FileNotFoundError
		if errors.As(err, &nf) {
			s.log.Info("firmware not found", "name", nf.Name, "checked", nf.Tried)
			s.writeBody(w, errorBody{
				Error:        "File not found",
				Code:         status.CodeFileNotFound,
				CheckedPaths: nf.Tried,
			})
			return
		}
		s.writeErr(w, err)
		return
	}

	s.log.Debug("firmware served", "name", img.Name, "path", img.Path, "bytes", len(img.Data))

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": img.Name}))
	h.Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img.Data); err != nil {
		s.log.Debug("firmware write aborted", "name", img.Name, "err", fmt.Sprint(err))
	}
}
