// Package response builds the envelopes every controller operation returns.
package response

import (
	"net/http"

	"github.com/arthur-debert/nanocrud/types"
)

// Error codes carried in Envelope.Code
const (
	// CodeNone means the error carries no distinct code
	CodeNone = 0
	// CodeNotLoggedIn marks rejections by the login gate
	CodeNotLoggedIn = 401
)

// Success wraps data in a state-0 envelope
func Success(data interface{}) types.Envelope {
	return types.Envelope{State: types.StateOK, Data: data}
}

// Error wraps message in a state-1 envelope without a code
func Error(message string) types.Envelope {
	return ErrorWithCode(message, CodeNone)
}

// ErrorWithCode wraps message in a state-1 envelope carrying code
func ErrorWithCode(message string, code int) types.Envelope {
	return types.Envelope{State: types.StateError, Data: message, Code: code}
}

// NotFound is a state-1 envelope sent with HTTP 404
func NotFound(message string) types.Envelope {
	env := Error(message)
	env.HTTPStatus = http.StatusNotFound
	return env
}
