package firmware

import (
	"fmt"

	"github.com/byronin/esp32-webflasher/internal/status"
)

// DirectoryNotFoundError indicates that the resolved firmware directory does not exist.
type DirectoryNotFoundError struct {
	Path string
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("firmware directory not found: %s", e.Path)
}

func (e *DirectoryNotFoundError) Code() uint16 { return status.CodeDirectoryNotFound }

// FileNotFoundError indicates that no candidate path could be read.
// Tried lists every attempted absolute path in probe order; it never says
// why an individual candidate failed.
type FileNotFoundError struct {
	Name  string
	Tried []string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("firmware %q not found (tried %d paths)", e.Name, len(e.Tried))
}

func (e *FileNotFoundError) Code() uint16 { return status.CodeFileNotFound }
