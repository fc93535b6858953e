// internal/status/constants.go
package status

// Result codes shared by the HTTP surface, the CLI exit path and the
// operator log. Values are part of the API and MUST NOT be renumbered.

// ---- SUCCESS ----

// CodeOK means the operation completed.
const CodeOK uint16 = 0

// ---- REQUEST ----

// CodeInvalidRequest means required input was missing or unusable.
const CodeInvalidRequest uint16 = 1

// ---- FIRMWARE LOCATOR ----

// CodeDirectoryNotFound means the configured firmware directory does not exist.
const CodeDirectoryNotFound uint16 = 2

// CodeFileNotFound means no candidate path yielded a readable file.
const CodeFileNotFound uint16 = 3

// ---- SESSION ----

// CodeTransportUnavailable means no transport was selected.
const CodeTransportUnavailable uint16 = 4

// CodeTransportFailure means open/close/read/write on the transport failed.
const CodeTransportFailure uint16 = 5

// CodeEngineFailure means the flashing engine reported a failed stage.
const CodeEngineFailure uint16 = 6

// CodeBusy means another activity currently owns the transport.
const CodeBusy uint16 = 7

// ---- FALLBACK ----

// CodeInternal is used for errors that expose no code.
const CodeInternal uint16 = 255

// ---- SESSION MODES ----

// Mode names as reported in snapshots.
const (
	ModeIdle      = "idle"
	ModeFlashing  = "flashing"
	ModeDebugging = "debugging"
)
