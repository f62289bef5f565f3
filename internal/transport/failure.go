package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
)

const connectionFailedMessage string = "connection failed"

// HTTPFailure is returned for every request that did not complete with a 2xx status.
// A Status of 0 means the server could not be reached at all.
type HTTPFailure struct {
	Status  int
	Message string
	Method  string
	Path    string
	Err     error
}

func (f *HTTPFailure) Error() string {
	if f.Status == 0 && f.Err != nil {
		return fmt.Sprintf("%s: %s", f.Message, f.Err.Error())
	}
	return f.Message
}

func (f *HTTPFailure) Unwrap() error {
	return f.Err
}

// Is makes a connection failure match apperrors.ErrConnection.
func (f *HTTPFailure) Is(target error) bool {
	return f.Status == 0 && target == apperrors.ErrConnection
}

func (f *HTTPFailure) Unauthorized() bool {
	return f.Status == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an HTTPFailure.
func StatusOf(err error) int {
	var failure *HTTPFailure
	if errors.As(err, &failure) {
		return failure.Status
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

func newConnectionFailure(method, path string, err error) *HTTPFailure {
	return &HTTPFailure{Method: method, Path: path, Message: connectionFailedMessage, Err: err}
}

func newStatusFailure(method, path string, status int, body []byte) *HTTPFailure {
	return &HTTPFailure{
		Method:  method,
		Path:    path,
		Status:  status,
		Message: failureMessage(status, serverMessage(body)),
	}
}

// failureMessage picks the text shown to the operator. The server's own message is used
// except for the statuses where it would leak internals or is not meaningful.
func failureMessage(status int, fromServer string) string {
	switch status {
	case http.StatusBadRequest:
		return orDefault(fromServer, "invalid request, please check your data")
	case http.StatusForbidden:
		return "you do not have permission to perform this action"
	case http.StatusNotFound:
		return orDefault(fromServer, "resource not found")
	case http.StatusInternalServerError:
		return "server error, please try again later"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable, please try again later"
	default:
		return orDefault(fromServer, fmt.Sprintf("HTTP error: %d", status))
	}
}

// serverMessage reads the "message" field of an error body, which is either a string
// or a list of validation messages.
func serverMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(payload.Message, &many); err == nil {
		return strings.Join(many, ", ")
	}
	return ""
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
