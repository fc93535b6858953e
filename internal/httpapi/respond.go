package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/byronin/esp32-webflasher/internal/status"
)

// envelope is the timestamped wrapper around every successful JSON body.
type envelope struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error        string   `json:"error"`
	Code         uint16   `json:"code"`
	CodeName     string   `json:"codeName"`
	Path         string   `json:"path,omitempty"`
	CheckedPaths []string `json:"checkedPaths,omitempty"`
}

var errNilData = errors.New("httpapi: response data is required")

// wrap builds the timestamped envelope. Wrapping nil is a programming error.
func wrap(data any) (envelope, error) {
	if data == nil {
		return envelope{}, errNilData
	}
	return envelope{Timestamp: time.Now().UTC(), Data: data}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeData(w http.ResponseWriter, data any) {
	env, err := wrap(data)
	if err != nil {
		s.log.Error("response wrap failed", "err", err)
		s.writeError(w, status.CodeInternal, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) writeError(w http.ResponseWriter, code uint16, msg string) {
	s.writeBody(w, errorBody{Error: msg, Code: code})
}

func (s *Server) writeBody(w http.ResponseWriter, body errorBody) {
	body.CodeName = status.Name(body.Code)
	s.writeJSON(w, status.HTTPStatus(body.Code), body)
}

// writeErr renders err using its taxonomy code.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	code := status.CodeOf(err)
	if code == status.CodeInternal {
		s.log.Error("request failed", "err", err)
	}
	s.writeError(w, code, err.Error())
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:    "method not allowed",
		Code:     status.CodeInvalidRequest,
		CodeName: status.Name(status.CodeInvalidRequest),
	})
}
