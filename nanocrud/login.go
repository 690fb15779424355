package nanocrud

import (
	"context"

	"github.com/arthur-debert/nanocrud/nanocrud/auth"
	"github.com/arthur-debert/nanocrud/nanocrud/response"
)

// LoginRequired rejects requests whose context carries no authenticated user
func LoginRequired(next Handler) Handler {
	return func(ctx context.Context, fields Fields) (Envelope, error) {
		if _, ok := auth.UserFromContext(ctx); !ok {
			return response.ErrorWithCode(MsgNotLoggedIn, response.CodeNotLoggedIn), nil
		}
		return next(ctx, fields)
	}
}

var _ Middleware = LoginRequired
