package types

import "net/http"

// State is the envelope status flag
type State int

const (
	StateOK    State = 0
	StateError State = 1
)

// Envelope is the normalized response returned for every operation.
// State is StateOK exactly when the operation succeeded.
type Envelope struct {
	State State       `json:"state" yaml:"state"`
	Data  interface{} `json:"data" yaml:"data"`
	// Code is a distinct error code, set only for errors that carry one
	Code int `json:"code,omitempty" yaml:"code,omitempty"`

	// HTTPStatus is transient and never serialized; zero means 200
	HTTPStatus int `json:"-" yaml:"-"`
}

// OK reports whether the envelope represents success
func (e Envelope) OK() bool {
	return e.State == StateOK
}

// Message returns Data when it is a string
func (e Envelope) Message() string {
	s, _ := e.Data.(string)
	return s
}

// Status returns the HTTP status to send with the envelope
func (e Envelope) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusOK
	}
	return e.HTTPStatus
}
