package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Status values used for errors that did not come from a backend response.
const (
	StatusNetwork = 0  // no response received
	StatusClient  = -1 // request could not be built or the response decoded
)

const (
	msgNetwork = "Network error - please check your connection"
	msgDefault = "An error occurred"
)

// APIError is every error returned by Client. Status is the HTTP status of
// a backend error, StatusNetwork for transport failures and StatusClient for
// anything else. Details holds the structured error body, if any.
type APIError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details any    `json:"details,omitempty"`

	Err error `json:"-"`
}

func (e *APIError) Error() string {
	switch e.Status {
	case StatusNetwork, StatusClient:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Class names the error class for metrics: network, backend or client.
func (e *APIError) Class() string {
	switch e.Status {
	case StatusNetwork:
		return "network"
	case StatusClient:
		return "client"
	}
	return "backend"
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// StatusOf returns the APIError status of err, or StatusClient.
func StatusOf(err error) int {
	if ae, ok := AsAPIError(err); ok {
		return ae.Status
	}
	return StatusClient
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return err != nil && StatusOf(err) == StatusNetwork
}

// IsUnauthorized reports whether the backend rejected the credentials.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func networkError(err error) *APIError {
	return &APIError{Message: msgNetwork, Status: StatusNetwork, Err: err}
}

func clientError(err error) *APIError {
	return &APIError{Message: err.Error(), Status: StatusClient, Err: err}
}

// responseError builds the error for a non-2xx response. The message is
// error.message, then message, then a generic text. Details is
// error.details, else the whole body.
func responseError(status int, body []byte) *APIError {
	ae := &APIError{Message: msgDefault, Status: status}
	if !gjson.ValidBytes(body) {
		if len(body) > 0 {
			ae.Details = string(body)
		}
		return ae
	}

	doc := gjson.ParseBytes(body)
	if m := doc.Get("error.message"); m.Type == gjson.String && m.String() != "" {
		ae.Message = m.String()
	} else if m := doc.Get("message"); m.Type == gjson.String && m.String() != "" {
		ae.Message = m.String()
	} else if m := doc.Get("error"); m.Type == gjson.String && m.String() != "" {
		ae.Message = m.String()
	}

	var details any
	if d := doc.Get("error.details"); d.Exists() {
		_ = json.Unmarshal([]byte(d.Raw), &details)
	} else {
		_ = json.Unmarshal(body, &details)
	}
	ae.Details = details
	return ae
}
