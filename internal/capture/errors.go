package capture

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for recorder lifecycle violations
var (
	// ErrInvalidState is returned when an operation is attempted in a state
	// that does not allow it (e.g., Start without Open)
	ErrInvalidState = errors.New("capture: invalid recorder state")
	// ErrEmptyRecording is returned by Stop when zero bytes were captured
	ErrEmptyRecording = errors.New("capture: recording produced no data")
	// ErrAlreadyOpen is returned by Open when the device is already held
	ErrAlreadyOpen = errors.New("capture: camera already open")
)

// DeviceErrorKind classifies camera acquisition failures for the error
// screen shown to the operator
type DeviceErrorKind int

const (
	// DeviceErrDenied indicates a permission/authorization failure
	DeviceErrDenied DeviceErrorKind = iota
	// DeviceErrNotFound indicates no usable camera device
	DeviceErrNotFound
	// DeviceErrInUse indicates the device is held by another process
	DeviceErrInUse
	// DeviceErrUnknown indicates an unclassified failure
	DeviceErrUnknown
)

// String returns a human-readable string representation of the error kind
func (k DeviceErrorKind) String() string {
	switch k {
	case DeviceErrDenied:
		return "denied"
	case DeviceErrNotFound:
		return "not-found"
	case DeviceErrInUse:
		return "in-use"
	case DeviceErrUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// DeviceError is a camera acquisition failure with a classified kind.
// It is always recoverable via an explicit retry action.
type DeviceError struct {
	Kind DeviceErrorKind
	Err  error
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture: device error [%s]: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// AsDeviceError extracts a DeviceError from an error chain, if present
func AsDeviceError(err error) (*DeviceError, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ClassifyDeviceError analyzes an acquisition failure and categorizes it for
// the recoverable error screen.
//
// Classification is based on error message heuristics: the platform source
// element does not expose structured failure codes, so we rely on string
// matching, checking the most specific category first.
func ClassifyDeviceError(errMsg, debugStr string) DeviceErrorKind {
	combined := strings.ToLower(errMsg + " " + debugStr)

	if containsAny(combined,
		"permission denied",
		"not authorized",
		"operation not permitted",
		"access denied",
	) {
		return DeviceErrDenied
	}

	if containsAny(combined,
		"device or resource busy",
		"resource busy",
		"in use",
		"already in use",
	) {
		return DeviceErrInUse
	}

	if containsAny(combined,
		"no such file",
		"no such device",
		"not found",
		"cannot identify device",
		"no device",
	) {
		return DeviceErrNotFound
	}

	return DeviceErrUnknown
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
