package device

import (
	"errors"
	"fmt"
)

var (
	ErrTransport          = errors.New("device unreachable")
	ErrNonJSONResponse    = errors.New("device returned a non-JSON response")
	ErrMissingCredentials = errors.New("token or secret missing")
	ErrMissingAddress     = errors.New("device address missing")
)

// StatusError reports a non-2xx transport status from the device.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device returned HTTP %d", e.Code)
}

// DeviceError reports a business-logic failure carried in the response
// envelope: a status field that is present and not 0, "dry-run" or null.
type DeviceError struct {
	Status any
	Msg    string
}

func (e *DeviceError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("device error: %s", e.Msg)
	}
	return fmt.Sprintf("device error: status %v", e.Status)
}
