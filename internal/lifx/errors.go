package lifx

import (
	"errors"
	"fmt"
)

// UnknownErrorMessage is reported when a failing response carries no error text.
const UnknownErrorMessage = "unknown error"

var (
	// ErrMissingToken indicates the client was configured without an API token.
	ErrMissingToken = errors.New("lifx: api token is required")

	// ErrInvalidURL indicates the configured API URL could not be parsed.
	ErrInvalidURL = errors.New("lifx: invalid api url")
)

// InventoryError reports a failed device listing.
//
// StatusCode is zero when the request never produced a response.
type InventoryError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *InventoryError) Error() string {
	return formatAPIError("listing lights", e.StatusCode, e.Message, e.Err)
}

func (e *InventoryError) Unwrap() error { return e.Err }

// UpdateError reports a failed batch state update.
//
// StatusCode is zero when the request never produced a response.
type UpdateError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpdateError) Error() string {
	return formatAPIError("setting states", e.StatusCode, e.Message, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

func formatAPIError(op string, status int, msg string, err error) string {
	if status == 0 {
		return fmt.Sprintf("lifx: %s: %v", op, err)
	}
	return fmt.Sprintf("lifx: %s: response '%d', message: %s", op, status, msg)
}
