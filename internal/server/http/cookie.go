package httpserver

import (
	"net/http"
	"time"

	"github.com/and161185/playlister/internal/config"
)

// CookieName carries the session token.
const CookieName = "token"

// sessionCookies applies one attribute policy to every cookie it writes.
type sessionCookies struct {
	policy config.CookiePolicy
	ttl    time.Duration
}

func (c sessionCookies) set(w http.ResponseWriter, tok string) {
	ck := &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.policy.Secure,
		SameSite: c.policy.SameSite,
	}
	if c.ttl > 0 {
		ck.MaxAge = int(c.ttl / time.Second)
		ck.Expires = time.Now().Add(c.ttl)
	}
	http.SetCookie(w, ck)
}

func (c sessionCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.policy.Secure,
		SameSite: c.policy.SameSite,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

func tokenFrom(r *http.Request) string {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}
