// Package auth attaches an authenticated user to request contexts. The
// controller's login gate only checks for the user's presence; how the user
// is established is up to the Authenticator.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoCredentials is returned when the request carries nothing to check
var ErrNoCredentials = errors.New("no credentials")

// User is an authenticated caller
type User struct {
	ID string `json:"id"`
}

// Authenticator establishes the caller of a request
type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(userKey{}).(*User)
	return user, ok && user != nil
}
