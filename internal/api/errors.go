package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNetwork covers everything that never produced a usable answer:
	// transport failures and bodies that are not JSON.
	ErrNetwork = errors.New("network error")

	ErrAdminKeyMissing = errors.New("admin key is not configured")
)

// alreadyVotedPhrase is how the server words a duplicate vote. There is no
// structured error code for it.
const alreadyVotedPhrase = "already voted"

// APIError is a non-2xx answer from the awards API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.StatusCode, e.Message)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text(status int) string {
	switch {
	case strings.TrimSpace(b.Message) != "":
		return b.Message
	case strings.TrimSpace(b.Error) != "":
		return b.Error
	default:
		return http.StatusText(status)
	}
}

// IsAlreadyVoted reports whether the server rejected a vote because the voter
// already holds one in that category.
func IsAlreadyVoted(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), alreadyVotedPhrase)
}

// IsConflict reports an HTTP 409, which the API uses for duplicate names.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Message returns the text a user should see for err: the server's message
// when there is one.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ErrNetwork) {
		return "Unable to connect to the server."
	}
	if errors.Is(err, ErrAdminKeyMissing) {
		return "Configuration error: the admin key is missing."
	}
	return err.Error()
}
