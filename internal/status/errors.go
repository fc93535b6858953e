// internal/status/errors.go
package status

import "fmt"

// InvalidRequestError indicates missing or unusable input.
// It is shared by every component that validates caller input.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func (e *InvalidRequestError) Code() uint16 { return CodeInvalidRequest }
