package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
)

const refreshCookie = "refreshToken"

// CookieOptions controls the attributes of the session cookies.
type CookieOptions struct {
	Secure bool
	Domain string
}

func (o CookieOptions) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	if maxAge < 0 {
		c.MaxAge = -1
	}
	return c
}

func setSessionCookies(w http.ResponseWriter, opts CookieOptions, tokens models.SessionTokens, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, opts.cookie(middleware.AccessCookie, tokens.AccessToken, accessTTL))
	http.SetCookie(w, opts.cookie(refreshCookie, tokens.RefreshToken, refreshTTL))
}

func clearSessionCookies(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, opts.cookie(middleware.AccessCookie, "", -1))
	http.SetCookie(w, opts.cookie(refreshCookie, "", -1))
}
