// internal/status/code.go
package status

import (
	"errors"
	"net/http"
)

// CodeOf extracts a result code from an error without assuming concrete types.
// nil maps to CodeOK; errors that do not expose a code map to CodeInternal.
func CodeOf(err error) uint16 {
	if err == nil {
		return CodeOK
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	return CodeInternal
}

// HTTPStatus maps a result code to the HTTP status used by the API.
func HTTPStatus(code uint16) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeDirectoryNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeTransportUnavailable:
		return http.StatusPreconditionFailed
	case CodeBusy:
		return http.StatusConflict
	case CodeTransportFailure, CodeEngineFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps a result code to a process exit status.
// 0 is success; every failure is non-zero and distinct per code.
func ExitCode(code uint16) int {
	if code == CodeOK {
		return 0
	}
	if code == CodeInternal {
		return 1
	}
	return 10 + int(code)
}

// Name returns a short machine-friendly name for a code.
func Name(code uint16) string {
	switch code {
	case CodeOK:
		return "ok"
	case CodeInvalidRequest:
		return "invalid_request"
	case CodeDirectoryNotFound:
		return "directory_not_found"
	case CodeFileNotFound:
		return "file_not_found"
	case CodeTransportUnavailable:
		return "transport_unavailable"
	case CodeTransportFailure:
		return "transport_failure"
	case CodeEngineFailure:
		return "engine_failure"
	case CodeBusy:
		return "busy"
	default:
		return "internal"
	}
}
