package httpapi

import (
	"errors"
	"net/http"
)

// Error is a failure with a fixed HTTP status and a client-safe message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrInternal is the body of every unexpected failure.
var ErrInternal = &Error{Status: http.StatusInternalServerError, Message: "internal server error"}

// BadRequest builds a 400 error with msg.
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// StatusOf maps err to its HTTP status and message. Anything that is not an *Error is an
// internal failure and its text is not exposed.
func StatusOf(err error) (int, string) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr.Message
	}
	return ErrInternal.Status, ErrInternal.Message
}

// HandleError writes err as a failure envelope.
func HandleError(w http.ResponseWriter, err error) {
	status, msg := StatusOf(err)
	Fail(w, status, msg)
}
