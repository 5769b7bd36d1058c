package httpserver

import (
	"context"

	"github.com/and161185/playlister/internal/service"
)

type ctxKey string

const sessionKey ctxKey = "playlister.session"

// WithSession stores the authenticated session in context.
func WithSession(ctx context.Context, s service.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromCtx fetches the authenticated session from context.
func SessionFromCtx(ctx context.Context) (service.Session, bool) {
	s, ok := ctx.Value(sessionKey).(service.Session)
	if !ok || !s.LoggedIn() {
		return service.Session{}, false
	}
	return s, true
}
