package httpx

import (
	"net/http"
	"time"
)

// SessionOptions configures the session middleware and its cookie.
type SessionOptions struct {
	CookieName string
	Lifetime   time.Duration
	Path       string
	Secure     bool
	SameSite   http.SameSite
}

type SessionOption func(*SessionOptions)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) SessionOption {
	return func(o *SessionOptions) {
		if name != "" {
			o.CookieName = name
		}
	}
}

// WithLifetime sets both the payload TTL and the cookie max age.
func WithLifetime(d time.Duration) SessionOption {
	return func(o *SessionOptions) {
		if d > 0 {
			o.Lifetime = d
		}
	}
}

// WithCookiePath scopes the session cookie to a path.
func WithCookiePath(path string) SessionOption {
	return func(o *SessionOptions) {
		if path != "" {
			o.Path = path
		}
	}
}

// WithSecureCookie marks the cookie as HTTPS-only.
func WithSecureCookie(secure bool) SessionOption {
	return func(o *SessionOptions) {
		o.Secure = secure
	}
}

// WithSameSite sets the cookie SameSite policy.
func WithSameSite(mode http.SameSite) SessionOption {
	return func(o *SessionOptions) {
		o.SameSite = mode
	}
}

func defaultSessionOptions() SessionOptions {
	return SessionOptions{
		CookieName: "cachet_session",
		Lifetime:   time.Hour,
		Path:       "/",
		SameSite:   http.SameSiteLaxMode,
	}
}
