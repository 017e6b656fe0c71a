package auth

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
)

// CookieOptions are the deployment-dependent cookie attributes.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

// SessionCookie builds the cookie carrying token. It is scoped to the whole
// site, hidden from page scripts and never outlives the token.
func SessionCookie(token string, expiresAt, now time.Time, opts CookieOptions) *http.Cookie {
	maxAge := int(expiresAt.Sub(now) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// TokenFromRequest returns the session token sent by the client.
func TokenFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
