package auth

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Middleware authenticates each request and, on success, stores the user in
// the request context. Failures are logged and the request continues
// anonymously; rejecting is the login gate's job.
func Middleware(a Authenticator, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		user, err := a.Authenticate(c.Request)
		switch {
		case err == nil:
			c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		case errors.Is(err, ErrNoCredentials):
		default:
			logger.Debug("authentication failed", "path", c.Request.URL.Path, "error", err)
		}
		c.Next()
	}
}
