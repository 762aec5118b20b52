package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hongminglow/aratiri-client/internal/session"
)

// ErrSessionExpired is returned when a 401 cannot be recovered by refreshing.
// It is the same value session.ErrSessionExpired so callers can match either.
var ErrSessionExpired = session.ErrSessionExpired

// RequestError is any non-2xx response that is not handled by the refresh flow.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// errorBody covers the message fields the wallet API uses in error payloads.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newRequestError(status int, body []byte) *RequestError {
	msg := fmt.Sprintf("HTTP error %d", status)
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case strings.TrimSpace(eb.Message) != "":
			msg = eb.Message
		case strings.TrimSpace(eb.Error) != "":
			msg = eb.Error
		}
	}
	return &RequestError{Status: status, Message: msg}
}
